package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// layerRules lists, per package prefix under internal/, the internal packages it must not import.
var layerRules = []struct {
	prefix string
	deny   []string
}{
	{prefix: "internal/domain/", deny: []string{"data/", "services", "http/", "http", "app", "cache", "sse", "jobs/"}},
	{prefix: "internal/platform/", deny: []string{"data/", "services", "http/", "http", "app", "cache", "sse", "jobs/"}},
	{prefix: "internal/cache/", deny: []string{"data/", "services", "http/", "http", "app"}},
	{prefix: "internal/sse/", deny: []string{"data/", "services", "http/", "http", "app"}},
	{prefix: "internal/jobs/", deny: []string{"services", "http/", "http", "app"}},
	{prefix: "internal/data/", deny: []string{"services", "http/", "http", "app", "cache", "sse"}},
	{prefix: "internal/services/", deny: []string{"http/", "http", "app"}},
	{prefix: "internal/http/", deny: []string{"app", "data/db"}},
}

func TestImportBoundaries(t *testing.T) {
	root, modulePath := moduleRoot(t)
	internalDir := filepath.Join(root, "internal")
	fset := token.NewFileSet()

	var violations []string
	walkErr := filepath.WalkDir(internalDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		deny := denyFor(rel)
		if len(deny) == 0 {
			return nil
		}
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			imp, err := strconv.Unquote(spec.Path.Value)
			if err != nil || !strings.HasPrefix(imp, modulePath+"/internal/") {
				continue
			}
			target := strings.TrimPrefix(imp, modulePath+"/internal/")
			for _, bad := range deny {
				if matchesRule(target, bad) {
					violations = append(violations, fmt.Sprintf("- %s imports %q", rel, imp))
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk internal/: %v", walkErr)
	}
	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n%s", strings.Join(violations, "\n"))
	}
}

func TestMatchesRule(t *testing.T) {
	cases := []struct {
		target, rule string
		want         bool
	}{
		{"http", "http", true},
		{"http/handlers", "http/", true},
		{"http/handlers", "http", false},
		{"httpx", "http", false},
		{"data/db", "data/", true},
		{"services", "services", true},
	}
	for _, tc := range cases {
		if got := matchesRule(tc.target, tc.rule); got != tc.want {
			t.Fatalf("matchesRule(%q, %q) = %v, want %v", tc.target, tc.rule, got, tc.want)
		}
	}
}

func denyFor(rel string) []string {
	for _, r := range layerRules {
		if strings.HasPrefix(rel, r.prefix) {
			return r.deny
		}
	}
	return nil
}

// matchesRule treats rules ending in "/" as subtree prefixes and all others as exact packages.
func matchesRule(target, rule string) bool {
	if strings.HasSuffix(rule, "/") {
		return strings.HasPrefix(target, rule)
	}
	return target == rule
}

func moduleRoot(t *testing.T) (string, string) {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root, err := findModuleRoot(start)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}
	modulePath, err := readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}
	return root, modulePath
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found from %s", start)
		}
		dir = parent
	}
}

func readModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "module ") {
			continue
		}
		mp := strings.TrimSpace(strings.TrimPrefix(line, "module "))
		if mp == "" {
			return "", fmt.Errorf("empty module path in %s", goModPath)
		}
		return mp, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module path not found in %s", goModPath)
}
