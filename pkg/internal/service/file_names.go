package service

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

var wordDecoder = mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader 支持 htmlindex 认识的全部字符集.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}

	return enc.NewDecoder().Reader(input), nil
}

// DecodeFileName 还原客户端编码过的文件名.
//
// 依次尝试 RFC 2047 encoded-word、quoted-printable 与 base64，均失败时返回原值.
// 不带扩展名的普通名字（如 "file"）恰好也是合法 base64，只有解码结果像文件名时才采用.
func DecodeFileName(name string) string {
	switch {
	case strings.HasPrefix(name, "=?"):
		if s, err := wordDecoder.DecodeHeader(name); err == nil {
			return s
		}
	case strings.Contains(name, "=") && !strings.HasSuffix(name, "="):
		if b, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(name))); err == nil && printable(b) {
			return string(b)
		}
	default:
		if b, err := base64.StdEncoding.DecodeString(name); err == nil && printable(b) && nameLike(string(b)) {
			return string(b)
		}
	}

	return strings.ToValidUTF8(name, "")
}

func printable(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}

	for _, r := range string(b) {
		if !unicode.IsPrint(r) {
			return false
		}
	}

	return true
}

// nameLike 带扩展名，或含非 ASCII 文字.
func nameLike(s string) bool {
	if dot := strings.LastIndexByte(s, '.'); dot > 0 && dot < len(s)-1 {
		return true
	}

	return strings.ContainsFunc(s, func(r rune) bool {
		return r >= utf8.RuneSelf && unicode.IsLetter(r)
	})
}

// SanitizeFileName 只保留 [A-Za-z0-9._-]，用于 Content-Disposition.
func SanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, name)
}
