package configs

import "github.com/spf13/viper"

// S3Config MinIO / S3 连接配置.
type S3Config struct {
	// Endpoint 服务地址，可带 http:// 或 https://，带 scheme 时覆盖 UseSSL.
	Endpoint        string `mapstructure:"endpoint"          rule:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"       rule:"required,min=3,max=63"`
	Region          string `mapstructure:"region"            rule:"required"`
	// PublicURL 客户端可访问的地址，预签名上传与下载地址以它为主机签名；为空时使用 Endpoint.
	PublicURL string `mapstructure:"public_url" rule:"omitempty,url"`
}

func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("s3.endpoint", "localhost:9000")
	v.SetDefault("s3.access_key_id", "minioadmin")
	v.SetDefault("s3.secret_access_key", "minioadmin")
	v.SetDefault("s3.use_ssl", false)
	v.SetDefault("s3.bucket_name", "skelvault")
	v.SetDefault("s3.region", "us-east-1")
}
