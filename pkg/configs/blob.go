package configs

import (
	"time"

	"github.com/spf13/viper"
)

// BlobType blob 服务后端类型.
type BlobType string

const (
	BlobTypeMinio  BlobType = "minio"
	BlobTypeMemory BlobType = "memory"
)

// BlobConfig blob 服务配置，minio 后端复用 s3 配置段.
type BlobConfig struct {
	Type          BlobType      `mapstructure:"type"            rule:"oneof=minio memory"`
	UploadURLTTL  time.Duration `mapstructure:"upload_url_ttl"  rule:"min=1s"`
	ServingURLTTL time.Duration `mapstructure:"serving_url_ttl" rule:"min=1s"`
	MaxUploadSize int64         `mapstructure:"max_upload_size" rule:"min=1"`
}

func (c *BlobConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("blob.type", BlobTypeMemory)
	v.SetDefault("blob.upload_url_ttl", "15m")
	v.SetDefault("blob.serving_url_ttl", "24h")
	v.SetDefault("blob.max_upload_size", 64<<20)
}
