package lua

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidScriptName is returned for names that are not plain *.lua files.
var ErrInvalidScriptName = errors.New("invalid script name")

// sanitizeFilename checks for directory traversal and a .lua extension.
func sanitizeFilename(name string) (string, error) {
	if !strings.HasSuffix(name, ".lua") {
		return "", fmt.Errorf("%w: filename must end with .lua", ErrInvalidScriptName)
	}
	cleanName := filepath.Base(name)
	if cleanName != name || cleanName == ".lua" || strings.Contains(cleanName, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidScriptName, name)
	}
	return cleanName, nil
}

// ScriptPath returns the path of a script inside the scripts directory,
// creating the directory if needed.
func (e *Engine) ScriptPath(name string) (string, error) {
	cleanName, err := sanitizeFilename(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(e.scriptsDir); os.IsNotExist(err) {
		log.Printf("[Lua] Creating scripts directory: %s", e.scriptsDir)
		if err := os.MkdirAll(e.scriptsDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create scripts directory: %w", err)
		}
	}
	return filepath.Join(e.scriptsDir, cleanName), nil
}

func (e *Engine) existingScriptPath(name string) (string, error) {
	path, err := e.ScriptPath(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("script %q: %w", name, err)
	}
	return path, nil
}

// GetScriptCode reads the source of a script.
func (e *Engine) GetScriptCode(name string) (string, error) {
	path, err := e.ScriptPath(name)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// SaveScriptCode writes the source of a script.
func (e *Engine) SaveScriptCode(name, code string) error {
	path, err := e.ScriptPath(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(code), 0644)
}

// DeleteScript removes a script file.
func (e *Engine) DeleteScript(name string) error {
	path, err := e.ScriptPath(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// GetScriptList returns the sorted names of all scripts.
func (e *Engine) GetScriptList() ([]string, error) {
	var scripts []string
	files, err := os.ReadDir(e.scriptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return scripts, nil
		}
		return nil, err
	}
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == ".lua" {
			scripts = append(scripts, file.Name())
		}
	}
	sort.Strings(scripts)
	return scripts, nil
}
