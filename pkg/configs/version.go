package configs

// AppVersion 应用版本，构建时可通过 -ldflags "-X" 覆盖.
var AppVersion = "0.1.0"

// FileModuleName 文件模块名称，保留名.
const FileModuleName = "file"

// ReservedModuleNames 与系统路由同级的名称，不能作为模块名.
var ReservedModuleNames = []string{FileModuleName, "skey", "access", "user", "health", "scheduler"}
