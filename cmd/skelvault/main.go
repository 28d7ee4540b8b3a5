// Package main 启动应用程序
package main

import (
	"os"

	"github.com/yeisme/skelvault/pkg/cmd"
)

//	@title			SkelVault API
//	@version		1.0
//	@description	SkelVault 按模块声明暴露 list/view/add/edit/delete/preview 接口，提供权限校验、一次性 skey 与带延迟回收的文件树.

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

//	@BasePath	/api/v1

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
