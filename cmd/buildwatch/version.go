package main

import "runtime/debug"

// 可通过 -ldflags "-X main.buildVersion=..." 注入
var buildVersion = "dev"

// version 返回版本号，未注入时从构建信息中读取模块版本和 vcs 修订号
func version() string {
	if buildVersion != "dev" {
		return buildVersion
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return buildVersion
	}
	v := buildVersion
	if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		v = bi.Main.Version
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return v + " (" + s.Value[:7] + ")"
		}
	}
	return v
}
