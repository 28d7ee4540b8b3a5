// Package rule 基于 go-playground/validator 的校验，结构体标签使用 "rule".
//
// 除内置规则外还注册了：
//
//	ident     小写标识符，模块名与字段名使用
//	entitykey 小写 ULID，条目与 blob 的 key
//	ruletag   可被本包解析的规则串，字段声明里的附加规则使用
package rule

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const tagName = "rule"

var (
	inst *validator.Validate
	once sync.Once

	identPattern     = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	entityKeyPattern = regexp.MustCompile(`^[0-9a-hjkmnp-tv-z]{26}$`)
)

// engine 复用 gin 的 validator 实例，使请求绑定与配置校验共享同一组规则.
func engine() *validator.Validate {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok || v == nil {
			v = validator.New()
		}

		v.SetTagName(tagName)

		for tag, fn := range map[string]validator.Func{
			"ident":     matchString(identPattern),
			"entitykey": matchString(entityKeyPattern),
			"ruletag":   validRuleTag,
		} {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("register rule %s: %v", tag, err))
			}
		}

		inst = v
	})

	return inst
}

func matchString(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// validRuleTag 规则串能否被解析；validator 对未知规则直接 panic.
func validRuleTag(fl validator.FieldLevel) bool {
	tag := fl.Field().String()
	if tag == "" {
		return true
	}

	return ParseTag(tag) == nil
}

// Engine 返回全局 *validator.Validate.
func Engine() *validator.Validate {
	return engine()
}

// RegisterValidation 注册自定义规则.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	return engine().RegisterValidation(tag, fn, opts...)
}

// ValidateStruct 校验结构体，错误可用 Errors 展开.
func ValidateStruct(s any) error {
	return engine().Struct(s)
}

// ValidateVar 按规则校验单个值，例如 ValidateVar("a@b.c", "required,email").
func ValidateVar(field any, tag string) error {
	return engine().Var(field, tag)
}

// ParseTag 检查规则串是否合法，不合法时返回错误而不是 panic.
//
// 规则参数的解析依赖值的类型，分别以空串和 0.0 试跑，任一成功即视为合法.
func ParseTag(tag string) error {
	var err error
	for _, sample := range []any{"", 0.0} {
		if err = dryRun(sample, tag); err == nil {
			return nil
		}
	}

	return err
}

func dryRun(sample any, tag string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid rule %q: %v", tag, r)
		}
	}()

	_ = engine().Var(sample, tag)

	return nil
}

// ValidationErrors 字段名到失败规则的映射，如 {"Age": "gte=18"}.
type ValidationErrors map[string]string

// Errors 展开 validator 返回的错误，非校验错误返回 nil.
func Errors(err error) ValidationErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(ValidationErrors, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if name == "" {
			name = fe.Tag()
		}

		out[name] = fe.Tag()
		if fe.Param() != "" {
			out[name] += "=" + fe.Param()
		}
	}

	return out
}
