// Package instructions 收集附加到系统提示词后面的项目说明（AGENTS.md）。
package instructions

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// FileName 是项目说明文件名。
	FileName = "AGENTS.md"
	// OverrideFileName 存在时替代同目录下的 FileName。
	OverrideFileName = "AGENTS.override.md"
)

// Discover 依次读取 <home>/.ag/AGENTS.md 以及从文件系统根到 workdir 每一级目录中的说明文件，
// 用空行拼接。外层目录在前，离 workdir 越近的说明越靠后。
func Discover(home, workdir string) string {
	var parts []string
	if home != "" {
		parts = appendFile(parts, filepath.Join(home, ".ag", FileName))
	}
	if workdir == "" {
		return join(parts)
	}

	var dirs []string
	for dir := filepath.Clean(workdir); ; dir = filepath.Dir(dir) {
		dirs = append(dirs, dir)
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		before := len(parts)
		parts = appendFile(parts, filepath.Join(dirs[i], OverrideFileName))
		if len(parts) == before {
			parts = appendFile(parts, filepath.Join(dirs[i], FileName))
		}
	}
	return join(parts)
}

// WithInstructions 把说明拼接到系统提示词之后；没有说明时原样返回。
func WithInstructions(systemPrompt, extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\n# Project instructions\n\n" + extra
}

func appendFile(parts []string, path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return parts
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		parts = append(parts, text)
	}
	return parts
}

func join(parts []string) string {
	return strings.Join(parts, "\n\n")
}
