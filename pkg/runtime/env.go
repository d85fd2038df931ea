package runtime

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv tries to load env vars from:
// - .env.local, .env (cwd)
// - .env.local, .env (executable dir)
//
// It only sets vars that are not already set, matching godotenv's behavior.
func LoadDotEnv(logPrefix string) error {
	if IsDotEnvDisabled() {
		return nil
	}

	paths := []string{".env.local", ".env"}
	if exe, err := os.Executable(); err == nil && strings.TrimSpace(exe) != "" {
		dir := filepath.Dir(exe)
		paths = append(paths, filepath.Join(dir, ".env.local"), filepath.Join(dir, ".env"))
	}
	return loadDotEnvFiles(logPrefix, paths)
}

func loadDotEnvFiles(logPrefix string, paths []string) error {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}

		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
		log.Printf("%s loaded env from %s", logPrefix, p)
	}
	return nil
}

func IsDotEnvDisabled() bool {
	v := strings.TrimSpace(os.Getenv("IG_DOTENV"))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "0", "false", "off", "no":
		return true
	default:
		return false
	}
}
