package skeleton

import (
	"fmt"
	"regexp"
	"slices"
)

// blobKeyPattern blob key 为小写 ULID.
var blobKeyPattern = regexp.MustCompile(`^[0-9a-z]{26}$`)

// IsBlobKey 判断字符串是否具有 blob key 的格式.
func IsBlobKey(s string) bool {
	return blobKeyPattern.MatchString(s)
}

// FileBone 引用 blob 服务中的对象，值为 blob key，持久化时为该 key 建立锁.
type FileBone struct {
	BaseBone
}

func NewFileBone(base BaseBone) *FileBone {
	base.Indexed = true

	return &FileBone{BaseBone: base}
}

func (b *FileBone) Type() string { return TypeFile }

func (b *FileBone) FromClient(raw []string) (any, error) {
	for _, r := range raw {
		if !IsBlobKey(r) {
			return nil, fmt.Errorf("%w: %q is not a blob key", ErrInvalidValue, r)
		}
	}

	if b.Multiple {
		return slices.Clone(raw), nil
	}

	return raw[0], nil
}

func (b *FileBone) Unserialize(v any) any {
	if b.Multiple {
		return toStrings(v)
	}

	s, _ := v.(string)

	return s
}

func (b *FileBone) IndexValues(v any) []IndexValue {
	keys := toStrings(v)
	out := make([]IndexValue, 0, len(keys))

	for _, k := range keys {
		out = append(out, IndexValue{Value: k})
	}

	return out
}

func (b *FileBone) FilterValue(raw string) (IndexValue, error) {
	return IndexValue{Value: raw}, nil
}

// BlobKeys 返回值中引用的 blob key.
func (b *FileBone) BlobKeys(v any) []string {
	return toStrings(v)
}

// BlobReferrer 由引用 blob 的 bone 实现.
type BlobReferrer interface {
	BlobKeys(v any) []string
}
