package gdrive

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/drive/v3"

	"github.com/Ning0612/fsbridge/internal/adapter"
	"github.com/Ning0612/fsbridge/internal/domain"
)

// TestNormalizeRoot tests path normalization
func TestNormalizeRoot(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},  // Empty/root becomes empty
		{"/", ""}, // Root becomes empty
		{"folder", "/folder"},
		{"/folder", "/folder"},
		{"/folder/", "/folder"},
		{"  patches/ ", "/patches"},
	}

	for _, tt := range tests {
		got := normalizeRoot(tt.input)
		if got != tt.expected {
			t.Errorf("normalizeRoot(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

// TestEscapeQueryString tests query string escaping for injection prevention
func TestEscapeQueryString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"normal", "normal"},
		{"file'name", "file\\'name"},
		{"file''name", "file\\'\\'name"},
		{"no'special\"chars", "no\\'special\"chars"}, // Only single quotes escaped
		{"back\\slash", "back\\\\slash"},
	}

	for _, tt := range tests {
		got := escapeQueryString(tt.input)
		if got != tt.expected {
			t.Errorf("escapeQueryString(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

// TestSecurity_QueryInjection tests protection against query injection
func TestSecurity_QueryInjection(t *testing.T) {
	maliciousNames := []string{
		"file' or '1'='1",
		"'; DROP TABLE files; --",
		"file' AND trashed=false AND '1'='1",
	}

	for _, name := range maliciousNames {
		escaped := escapeQueryString(name)

		// Verify no unescaped single quotes remain
		unescaped := strings.ReplaceAll(escaped, "\\'", "")
		if strings.Contains(unescaped, "'") {
			t.Errorf("Unescaped single quote found in %q", escaped)
		}
	}
}

// TestJoinPath tests mapping backend paths under the root folder
func TestJoinPath(t *testing.T) {
	tests := []struct {
		root        string
		relPath     string
		expectError bool
		expected    string
	}{
		{"/test-root", "file.txt", false, "/test-root/file.txt"},
		{"/test-root", "/folder/file.txt", false, "/test-root/folder/file.txt"},
		{"/test-root", "/", false, "/test-root"},
		{"/test-root", "", false, "/test-root"},
		{"/test-root", "//a//b/", false, "/test-root/a/b"},
		{"", "/a", false, "/a"},
		{"", "/", false, ""},
		{"/test-root", "/a/../b", true, ""},
	}

	for _, tt := range tests {
		a := &Adapter{root: tt.root}
		got, err := a.joinPath(tt.relPath)
		if tt.expectError && err == nil {
			t.Errorf("joinPath(%q) expected error, got none", tt.relPath)
		}
		if !tt.expectError && err != nil {
			t.Errorf("joinPath(%q) unexpected error: %v", tt.relPath, err)
		}
		if !tt.expectError && got != tt.expected {
			t.Errorf("joinPath(%q) under %q = %q, want %q", tt.relPath, tt.root, got, tt.expected)
		}
	}
}

// TestSecurity_PathTraversal tests protection against path traversal attacks
func TestSecurity_PathTraversal(t *testing.T) {
	a := &Adapter{root: "/safe-root"}

	maliciousPaths := []string{
		"../../../etc/passwd",
		"folder/../../outside",
		"./../../escape",
		"..\\..\\windows\\system32", // Windows-style
	}

	for _, p := range maliciousPaths {
		if result, err := a.joinPath(p); err == nil {
			t.Errorf("joinPath(%q) = %q, want rejection", p, result)
		} else if !errors.Is(err, domain.ErrPermissionDenied) {
			t.Errorf("joinPath(%q) error = %v, want ErrPermissionDenied", p, err)
		}
	}
}

// TestItemFromDrive tests conversion of Drive metadata to items
func TestItemFromDrive(t *testing.T) {
	tests := []struct {
		name string
		in   *drive.File
		want domain.Item
	}{
		{
			name: "folder",
			in:   &drive.File{Name: "banks", MimeType: MimeTypeFolder, Size: 0},
			want: domain.Item{Name: "banks", Index: -1, Type: domain.ItemDir},
		},
		{
			name: "file",
			in:   &drive.File{Name: "lead.syx", MimeType: "application/octet-stream", Size: 1234},
			want: domain.Item{Name: "lead.syx", Index: -1, Type: domain.ItemFile, Size: 1234},
		},
		{
			name: "google doc without size",
			in:   &drive.File{Name: "notes", MimeType: "application/vnd.google-apps.document"},
			want: domain.Item{Name: "notes", Index: -1, Type: domain.ItemFile},
		},
		{
			name: "huge file clamps",
			in:   &drive.File{Name: "big.iso", Size: 1 << 33},
			want: domain.Item{Name: "big.iso", Index: -1, Type: domain.ItemFile, Size: ^uint32(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := itemFromDrive(tt.in); got != tt.want {
				t.Errorf("itemFromDrive() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestAdapterIdentity tests the fixed parts of the backend record
func TestAdapterIdentity(t *testing.T) {
	a := &Adapter{root: "/r", ext: "syx"}
	ops := adapter.NewOperations(a)

	if ops.FS() != adapter.FSGDrive {
		t.Errorf("FS() = %v", ops.FS())
	}
	if ops.Extension() != "syx" {
		t.Errorf("Extension() = %q", ops.Extension())
	}
	for _, op := range []adapter.Op{adapter.OpClear, adapter.OpSwap} {
		if ops.Supports(op) {
			t.Errorf("Supports(%s) = true", op)
		}
	}
	if !ops.Supports(adapter.OpDownload) || !ops.Supports(adapter.OpUpload) {
		t.Error("transfer slots should be supported")
	}
	if id := ops.GetID(domain.Item{Name: "pad.syx", Index: 5, Type: domain.ItemFile}); id != "pad.syx" {
		t.Errorf("GetID() = %q, want name", id)
	}
}

// TestNewAuthenticatorFromFile tests loading OAuth client credentials
func TestNewAuthenticatorFromFile(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewAuthenticatorFromFile("", ""); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("empty path error = %v, want ErrConfigInvalid", err)
	}
	if _, err := NewAuthenticatorFromFile(filepath.Join(dir, "missing.json"), ""); err == nil {
		t.Error("missing file should fail")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0600)
	if _, err := NewAuthenticatorFromFile(bad, ""); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("bad json error = %v, want ErrConfigInvalid", err)
	}

	good := filepath.Join(dir, "client.json")
	creds := `{"installed":{"client_id":"abc.apps.googleusercontent.com","client_secret":"s3cret",` +
		`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
		`"redirect_uris":["http://localhost"]}}`
	os.WriteFile(good, []byte(creds), 0600)

	tokenPath := filepath.Join(dir, "token.json")
	auth, err := NewAuthenticatorFromFile(good, tokenPath)
	if err != nil {
		t.Fatalf("NewAuthenticatorFromFile() error = %v", err)
	}
	if auth.Config().ClientID != "abc.apps.googleusercontent.com" {
		t.Errorf("ClientID = %q", auth.Config().ClientID)
	}
	if auth.TokenPath() != tokenPath {
		t.Errorf("TokenPath() = %q", auth.TokenPath())
	}
}

// TestIDCache tests cache storage and tree invalidation
func TestIDCache(t *testing.T) {
	cache := newIDCache()

	if _, ok := cache.get("/test"); ok {
		t.Error("expected cache miss for empty cache")
	}

	cache.set("/a", "1")
	cache.set("/a/b", "2")
	cache.set("/a/b/c", "3")
	cache.set("/ab", "4")

	if id, ok := cache.get("/a/b"); !ok || id != "2" {
		t.Errorf("get(/a/b) = %q, %v", id, ok)
	}

	cache.set("/a/b", "2-new")
	if id, _ := cache.get("/a/b"); id != "2-new" {
		t.Error("cache overwrite failed")
	}

	cache.deleteTree("/a")
	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		if _, ok := cache.get(p); ok {
			t.Errorf("expected %s dropped", p)
		}
	}
	if _, ok := cache.get("/ab"); !ok {
		t.Error("sibling with shared prefix must survive")
	}
}

// TestSecurity_CacheConcurrency tests cache thread safety
func TestSecurity_CacheConcurrency(t *testing.T) {
	cache := newIDCache()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			path := "/" + strings.Repeat("x", idx%10)
			cache.set(path, "id")
			cache.get(path)
			if idx%2 == 0 {
				cache.deleteTree(path)
			}
		}(i)
	}

	wg.Wait()
}

func BenchmarkEscapeQueryString(b *testing.B) {
	testStr := "file'with'many'quotes'in'it"
	for i := 0; i < b.N; i++ {
		_ = escapeQueryString(testStr)
	}
}

func BenchmarkCacheGet(b *testing.B) {
	cache := newIDCache()
	cache.set("/test", "id-123")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.get("/test")
	}
}
