package configs

import "github.com/spf13/viper"

// 骨架字段类型.
const (
	BoneString    = "string"
	BoneText      = "text"
	BoneNumeric   = "numeric"
	BoneBool      = "bool"
	BoneSelect    = "select"
	BoneSortIndex = "sortindex"
	BoneFile      = "file"
)

// 视图策略.
const (
	ViewListFilter = "listfilter" // 按 listFilter 控制查看
	ViewPublic     = "public"     // 任何人可查看 active 的条目
)

// ModuleConfig 列表模块声明，启动时据此生成权限表与骨架.
type ModuleConfig struct {
	Name  string       `mapstructure:"name"  rule:"required,ident,max=32"`
	Kind  string       `mapstructure:"kind"  rule:"omitempty,max=64"` // 为空时与 Name 相同
	Descr string       `mapstructure:"descr"`
	View  string       `mapstructure:"view"  rule:"omitempty,oneof=listfilter public"`
	Bones []BoneConfig `mapstructure:"bones" rule:"required,min=1,dive"`
}

// BoneConfig 单个字段声明.
type BoneConfig struct {
	Name          string   `mapstructure:"name"           rule:"required,ident,ne=key,max=64"`
	Type          string   `mapstructure:"type"           rule:"required,oneof=string text numeric bool select sortindex file"`
	Descr         string   `mapstructure:"descr"`
	Required      bool     `mapstructure:"required"`
	ReadOnly      bool     `mapstructure:"readonly"`
	Indexed       bool     `mapstructure:"indexed"`
	Searchable    bool     `mapstructure:"searchable"`
	Multiple      bool     `mapstructure:"multiple"`
	CaseSensitive *bool    `mapstructure:"case_sensitive"`
	MaxLength     int      `mapstructure:"max_length"     rule:"min=0"`
	Precision     int      `mapstructure:"precision"      rule:"min=0,max=10"`
	Min           *float64 `mapstructure:"min"`
	Max           *float64 `mapstructure:"max"`
	Values        []string `mapstructure:"values"         rule:"required_if=Type select"`
	Default       any      `mapstructure:"default"`
	Rule          string   `mapstructure:"rule"           rule:"ruletag"` // 附加的取值校验规则，如 "email"
}

// KindName 返回模块实体的 kind.
func (m *ModuleConfig) KindName() string {
	if m.Kind != "" {
		return m.Kind
	}

	return m.Name
}

// setModuleDefaults 默认声明一个内容列表模块 page.
func setModuleDefaults(v *viper.Viper) {
	v.SetDefault("modules", []map[string]any{
		{
			"name":  "page",
			"descr": "content pages",
			"view":  ViewListFilter,
			"bones": []map[string]any{
				{"name": "sortindex", "type": BoneSortIndex, "indexed": true},
				{"name": "active", "type": BoneBool, "indexed": true, "default": true, "descr": "Active"},
				{"name": "title", "type": BoneString, "required": true, "indexed": true, "searchable": true, "max_length": 255, "descr": "Title"},
				{"name": "content", "type": BoneText, "descr": "Content"},
				{"name": "image", "type": BoneFile, "descr": "Image"},
			},
		},
	})
}
