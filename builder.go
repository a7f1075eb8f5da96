package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	// DefaultBuildMethod 默认的构建入口（全限定方法名）
	DefaultBuildMethod = "VocabCardGame.Editor.BuildScript.BuildWebGL"
	// DefaultOutputEnv 向子进程传递输出目录的环境变量名
	DefaultOutputEnv = "BUILD_OUTPUT"
	// DefaultLogName 构建日志文件名（由外部构建命令写入）
	DefaultLogName = "unity_build.log"
)

// DefaultWatchSubdirs 默认监控的工程子目录
var DefaultWatchSubdirs = []string{"Assets", "Packages", "ProjectSettings"}

// Builder 执行一次构建
//
// Build 同步运行并阻塞到构建结束；返回 nil 表示成功，其它任何情况（包括无法启动）都是失败
// Target 返回构建输出目录，LogFile 返回构建日志路径，两者只用于控制台输出
type Builder interface {
	Build(ctx context.Context) error
	Target() string
	LogFile() string
}

// BuildConfig 配置外部构建命令
//
// Executable：外部构建程序路径（如 Unity 编辑器可执行文件）
// ProjectPath：工程路径，作为 -projectPath 的值
// Method：作为 -executeMethod 的值，默认 DefaultBuildMethod
// OutputDir：构建输出目录，构建前会自动创建，默认 <ProjectPath>/Builds/WebGL_dev
// LogFile：作为 -logFile 的值，默认 <OutputDir>/unity_build.log
// OutputEnv：携带 OutputDir 的环境变量名，默认 BUILD_OUTPUT
// ExtraArgs：追加在固定参数之后的额外参数
type BuildConfig struct {
	Executable  string
	ProjectPath string
	Method      string
	OutputDir   string
	LogFile     string
	OutputEnv   string
	ExtraArgs   []string
}

// DefaultBuildConfig 返回以 project 为工程路径的默认构建配置
func DefaultBuildConfig(executable, project string) BuildConfig {
	cfg := BuildConfig{Executable: executable, ProjectPath: project}
	cfg.applyDefaults()
	return cfg
}

// DefaultWatchPaths 返回工程下默认监控的目录
func DefaultWatchPaths(project string) []string {
	out := make([]string, 0, len(DefaultWatchSubdirs))
	for _, sub := range DefaultWatchSubdirs {
		out = append(out, filepath.Join(project, sub))
	}
	return out
}

func (c *BuildConfig) applyDefaults() {
	if c.Method == "" {
		c.Method = DefaultBuildMethod
	}
	if c.OutputDir == "" && c.ProjectPath != "" {
		c.OutputDir = filepath.Join(c.ProjectPath, "Builds", "WebGL_dev")
	}
	if c.LogFile == "" && c.OutputDir != "" {
		c.LogFile = filepath.Join(c.OutputDir, DefaultLogName)
	}
	if c.OutputEnv == "" {
		c.OutputEnv = DefaultOutputEnv
	}
}

// CommandBuilder 通过启动外部进程来构建
//
// 子进程不接收 stdin，stdout/stderr 默认继承当前进程；构建没有超时
type CommandBuilder struct {
	cfg    BuildConfig
	Stdout io.Writer
	Stderr io.Writer
}

// NewCommandBuilder 根据配置创建 CommandBuilder
//
// Executable 与 ProjectPath 必须提供，其余字段为空时使用默认值
func NewCommandBuilder(cfg BuildConfig) (*CommandBuilder, error) {
	if cfg.Executable == "" {
		return nil, errors.New("build executable is required")
	}
	if cfg.ProjectPath == "" {
		return nil, errors.New("project path is required")
	}
	cfg.applyDefaults()
	return &CommandBuilder{cfg: cfg, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

// Config 返回补全默认值之后的配置
func (b *CommandBuilder) Config() BuildConfig {
	return b.cfg
}

// Target 返回构建输出目录
func (b *CommandBuilder) Target() string {
	return b.cfg.OutputDir
}

// LogFile 返回构建日志路径
func (b *CommandBuilder) LogFile() string {
	return b.cfg.LogFile
}

// Args 返回传给外部程序的参数列表
func (b *CommandBuilder) Args() []string {
	args := []string{
		"-batchmode",
		"-quit",
		"-projectPath", b.cfg.ProjectPath,
		"-executeMethod", b.cfg.Method,
		"-logFile", b.cfg.LogFile,
	}
	return append(args, b.cfg.ExtraArgs...)
}

// Build 创建输出目录并同步运行外部构建命令
//
// ctx 只在启动前检查：已启动的构建总是运行到结束
func (b *CommandBuilder) Build(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", b.cfg.OutputDir, err)
	}

	cmd := exec.Command(b.cfg.Executable, b.Args()...)
	cmd.Env = append(os.Environ(), b.cfg.OutputEnv+"="+b.cfg.OutputDir)
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build command %s: %w", b.cfg.Executable, err)
	}
	return nil
}
