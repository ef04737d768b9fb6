package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Ning0612/fsbridge/internal/adapter"
	"github.com/Ning0612/fsbridge/internal/checksum"
	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/item"
	"github.com/Ning0612/fsbridge/internal/job"
	"github.com/Ning0612/fsbridge/internal/logger"
	"github.com/Ning0612/fsbridge/internal/pathutil"
	"github.com/Ning0612/fsbridge/internal/progress"
	"github.com/Ning0612/fsbridge/internal/transient"
)

const (
	// MimeTypeFolder is the MIME type for Google Drive folders
	MimeTypeFolder = "application/vnd.google-apps.folder"
	// PageSize is the number of files to fetch per request
	PageSize = 100

	fileFields = "id, name, mimeType, size, md5Checksum, parents"
)

// Adapter implements adapter.Adapter for Google Drive
type Adapter struct {
	service *drive.Service
	log     logger.Logger
	root    string   // Root folder path in Drive (e.g., "/fsbridge/patches")
	rootID  string   // Cached root folder ID
	ext     string   // Canonical extension of stored items
	cache   *idCache // Cache for path -> ID mapping
}

// Compile-time interface checks
var (
	_ adapter.Adapter    = (*Adapter)(nil)
	_ adapter.Mkdirer    = (*Adapter)(nil)
	_ adapter.Deleter    = (*Adapter)(nil)
	_ adapter.Renamer    = (*Adapter)(nil)
	_ adapter.Mover      = (*Adapter)(nil)
	_ adapter.Copier     = (*Adapter)(nil)
	_ adapter.Downloader = (*Adapter)(nil)
	_ adapter.Uploader   = (*Adapter)(nil)
	_ adapter.IDer       = (*Adapter)(nil)
)

// idCache caches folder ID lookups with thread-safe access
type idCache struct {
	mu    sync.RWMutex
	paths map[string]string // path -> file ID
}

func newIDCache() *idCache {
	return &idCache{
		paths: make(map[string]string),
	}
}

func (c *idCache) get(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.paths[path]
	return id, ok
}

func (c *idCache) set(path, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[path] = id
}

// deleteTree drops path and everything cached below it
func (c *idCache) deleteTree(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := path + "/"
	for p := range c.paths {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(c.paths, p)
		}
	}
}

// New creates a Google Drive adapter for transport.
// transport.Credentials names the OAuth client JSON downloaded from the
// Google Cloud console; the token must already exist at transport.TokenPath
// (see Authenticator.Authenticate).
func New(ctx context.Context, t domain.Transport, log logger.Logger) (*Adapter, error) {
	auth, err := NewAuthenticatorFromFile(t.Credentials, t.TokenPath)
	if err != nil {
		return nil, err
	}

	token, err := auth.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	return NewWithToken(ctx, token, auth.Config(), t.Root, t.Extension, log)
}

// NewWithToken creates a new adapter with an existing token
func NewWithToken(ctx context.Context, token *oauth2.Token, oauthConfig *oauth2.Config, root, ext string, log logger.Logger) (*Adapter, error) {
	client := oauthConfig.Client(ctx, token)

	service, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	a := &Adapter{
		service: service,
		log:     logger.OrNop(log).With("backend", "gdrive"),
		root:    normalizeRoot(root),
		ext:     strings.TrimPrefix(ext, "."),
		cache:   newIDCache(),
	}

	// Resolve root folder ID
	rootID, err := a.getOrCreateFolderID(ctx, a.root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root folder: %w", err)
	}
	a.rootID = rootID
	a.cache.set(a.root, rootID)

	return a, nil
}

// normalizeRoot normalizes the root path
func normalizeRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" || root == "/" {
		return ""
	}
	// Ensure leading slash, no trailing slash
	if !strings.HasPrefix(root, "/") {
		root = "/" + root
	}
	return strings.TrimSuffix(root, "/")
}

// FS returns adapter.FSGDrive
func (a *Adapter) FS() adapter.FS { return adapter.FSGDrive }

// Extension returns the configured extension
func (a *Adapter) Extension() string { return a.ext }

// Close releases any resources
func (a *Adapter) Close() error { return nil }

// Root returns the root path of this adapter
func (a *Adapter) Root() string { return a.root }

// ItemID addresses Drive items by name within their folder
func (a *Adapter) ItemID(it domain.Item) string { return it.Name }

// ReadDir lists the folder at p
func (a *Adapter) ReadDir(ctx context.Context, p string) (*item.Iterator, error) {
	fullPath, err := a.joinPath(p)
	if err != nil {
		return nil, err
	}
	// Use getFileID instead of getOrCreateFolderID to avoid implicit folder creation
	folderID, err := a.getFileID(ctx, fullPath)
	if err != nil {
		return nil, err
	}
	if folderID != a.rootID && folderID != "root" {
		f, err := a.getFile(ctx, folderID)
		if err != nil {
			return nil, err
		}
		if f.MimeType != MimeTypeFolder {
			return nil, fmt.Errorf("%s: %w", p, domain.ErrNotDirectory)
		}
	}

	var items []domain.Item
	pageToken := ""

	for {
		query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
		fileList, err := transient.DoWithData(ctx, a.log, "list", isTransient, func() (*drive.FileList, error) {
			call := a.service.Files.List().
				Q(query).
				PageSize(PageSize).
				OrderBy("folder, name").
				Fields("nextPageToken, files(id, name, mimeType, size)")
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			fl, err := call.Context(ctx).Do()
			return fl, a.mapError(err)
		})
		if err != nil {
			return nil, err
		}

		for _, f := range fileList.Files {
			items = append(items, itemFromDrive(f))
		}

		pageToken = fileList.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return item.FromSlice(items), nil
}

// Download fetches the file at p, verifying its MD5 against Drive's record
func (a *Adapter) Download(ctx context.Context, p string, ctl *job.Control) ([]byte, error) {
	fullPath, err := a.joinPath(p)
	if err != nil {
		return nil, err
	}
	fileID, err := a.getFileID(ctx, fullPath)
	if err != nil {
		return nil, err
	}
	meta, err := a.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if meta.MimeType == MimeTypeFolder {
		return nil, fmt.Errorf("%s: %w", p, domain.ErrNotFile)
	}

	data, err := transient.DoWithData(ctx, a.log, "download", isTransient, func() ([]byte, error) {
		resp, err := a.service.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return nil, a.mapError(err)
		}
		defer resp.Body.Close()

		var buf bytes.Buffer
		if meta.Size > 0 {
			buf.Grow(int(meta.Size))
		}
		if _, err := io.Copy(&buf, progress.NewReader(resp.Body, meta.Size, ctl)); err != nil {
			return nil, a.mapError(err)
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		return nil, err
	}

	if int64(len(data)) != meta.Size {
		return nil, fmt.Errorf("%w: got %d of %d bytes for %s", domain.ErrShortTransfer, len(data), meta.Size, p)
	}
	if err := checksum.Verify(data, checksum.MD5, meta.Md5Checksum); err != nil {
		return nil, err
	}
	if meta.Size == 0 {
		ctl.Progress(1)
	}

	return data, nil
}

// Upload creates or overwrites the file at p
func (a *Adapter) Upload(ctx context.Context, p string, data []byte, ctl *job.Control) error {
	fullPath, err := a.joinPath(p)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return fmt.Errorf("%s: %w", p, domain.ErrNotFile)
	}
	dirPath := pathutil.Dir(fullPath)
	if dirPath == "/" && a.root == "" {
		dirPath = ""
	}
	fileName := pathutil.Base(fullPath)

	media := func() io.Reader {
		return progress.NewReader(bytes.NewReader(data), int64(len(data)), ctl)
	}

	// Check if file already exists
	existingID, err := a.getFileID(ctx, fullPath)
	if err == nil {
		meta, err := a.getFile(ctx, existingID)
		if err != nil {
			return err
		}
		if meta.MimeType == MimeTypeFolder {
			return fmt.Errorf("%s: %w", p, domain.ErrNotFile)
		}
		return transient.Do(ctx, a.log, "update", isTransient, func() error {
			_, err := a.service.Files.Update(existingID, &drive.File{Name: fileName}).
				Context(ctx).
				Media(media()).
				Do()
			return a.mapError(err)
		})
	}

	// Only create new file if error is ErrNotFound
	// Other errors (permission, network, etc.) should be propagated
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	// Ensure parent directory exists
	parentID, err := a.getOrCreateFolderID(ctx, dirPath)
	if err != nil {
		return err
	}

	return transient.Do(ctx, a.log, "create", isTransient, func() error {
		created, err := a.service.Files.Create(&drive.File{
			Name:    fileName,
			Parents: []string{parentID},
		}).
			Fields("id").
			Context(ctx).
			Media(media()).
			Do()
		if err != nil {
			return a.mapError(err)
		}
		a.cache.set(fullPath, created.Id)
		return nil
	})
}

// Mkdir creates a folder and any necessary parents
func (a *Adapter) Mkdir(ctx context.Context, p string) error {
	fullPath, err := a.joinPath(p)
	if err != nil {
		return err
	}
	_, err = a.getOrCreateFolderID(ctx, fullPath)
	return err
}

// Delete removes a file or a folder with its contents
func (a *Adapter) Delete(ctx context.Context, p string) error {
	fullPath, err := a.joinPath(p)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return fmt.Errorf("refusing to delete root: %w", domain.ErrPermissionDenied)
	}
	fileID, err := a.getFileID(ctx, fullPath)
	if err != nil {
		return err
	}

	err = transient.Do(ctx, a.log, "delete", isTransient, func() error {
		return a.mapError(a.service.Files.Delete(fileID).Context(ctx).Do())
	})
	if err != nil {
		return err
	}

	a.cache.deleteTree(fullPath)
	return nil
}

// Rename gives the item at p a new name in its folder
func (a *Adapter) Rename(ctx context.Context, p, newName string) error {
	if newName == "" || strings.ContainsRune(newName, '/') {
		return fmt.Errorf("%q: %w", newName, domain.ErrInvalidName)
	}
	fullPath, err := a.joinPath(p)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return fmt.Errorf("cannot rename root: %w", domain.ErrPermissionDenied)
	}
	fileID, err := a.getFileID(ctx, fullPath)
	if err != nil {
		return err
	}

	err = transient.Do(ctx, a.log, "rename", isTransient, func() error {
		_, err := a.service.Files.Update(fileID, &drive.File{Name: newName}).Context(ctx).Do()
		return a.mapError(err)
	})
	if err != nil {
		return err
	}

	a.cache.deleteTree(fullPath)
	return nil
}

// Move moves src into dst's folder under dst's name
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	srcPath, err := a.joinPath(src)
	if err != nil {
		return err
	}
	dstPath, err := a.joinPath(dst)
	if err != nil {
		return err
	}
	if srcPath == a.root || dstPath == a.root {
		return fmt.Errorf("cannot move root: %w", domain.ErrPermissionDenied)
	}

	fileID, err := a.getFileID(ctx, srcPath)
	if err != nil {
		return err
	}
	parentID, err := a.checkDestination(ctx, dstPath)
	if err != nil {
		return err
	}
	meta, err := a.getFile(ctx, fileID)
	if err != nil {
		return err
	}

	err = transient.Do(ctx, a.log, "move", isTransient, func() error {
		_, err := a.service.Files.Update(fileID, &drive.File{Name: pathutil.Base(dstPath)}).
			AddParents(parentID).
			RemoveParents(strings.Join(meta.Parents, ",")).
			Context(ctx).
			Do()
		return a.mapError(err)
	})
	if err != nil {
		return err
	}

	a.cache.deleteTree(srcPath)
	return nil
}

// Copy duplicates the file src as dst. Folders cannot be copied.
func (a *Adapter) Copy(ctx context.Context, src, dst string) error {
	srcPath, err := a.joinPath(src)
	if err != nil {
		return err
	}
	dstPath, err := a.joinPath(dst)
	if err != nil {
		return err
	}
	if dstPath == a.root {
		return fmt.Errorf("%s: %w", dst, domain.ErrAlreadyExists)
	}

	fileID, err := a.getFileID(ctx, srcPath)
	if err != nil {
		return err
	}
	meta, err := a.getFile(ctx, fileID)
	if err != nil {
		return err
	}
	if meta.MimeType == MimeTypeFolder {
		return fmt.Errorf("%s: %w", src, domain.ErrNotFile)
	}
	parentID, err := a.checkDestination(ctx, dstPath)
	if err != nil {
		return err
	}

	return transient.Do(ctx, a.log, "copy", isTransient, func() error {
		_, err := a.service.Files.Copy(fileID, &drive.File{
			Name:    pathutil.Base(dstPath),
			Parents: []string{parentID},
		}).Context(ctx).Do()
		return a.mapError(err)
	})
}

// checkDestination returns the folder ID dst will live in.
// dst itself must not exist yet.
func (a *Adapter) checkDestination(ctx context.Context, dstPath string) (string, error) {
	_, err := a.getFileID(ctx, dstPath)
	if err == nil {
		return "", fmt.Errorf("%s: %w", dstPath, domain.ErrAlreadyExists)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	dir := pathutil.Dir(dstPath)
	if dir == "/" && a.root == "" {
		dir = ""
	}
	return a.getFileID(ctx, dir)
}

// joinPath maps a '/'-rooted backend path under root, rejecting traversal
func (a *Adapter) joinPath(relPath string) (string, error) {
	if strings.ContainsRune(relPath, '\\') {
		return "", fmt.Errorf("%s: %w", relPath, domain.ErrPermissionDenied)
	}

	// Check for path traversal attempt before cleaning hides it
	for _, part := range strings.Split(relPath, "/") {
		if part == ".." {
			return "", fmt.Errorf("%s escapes root: %w", relPath, domain.ErrPermissionDenied)
		}
	}

	cleanPath := path.Clean("/" + relPath)
	if cleanPath == "/" {
		return a.root, nil
	}
	return a.root + cleanPath, nil
}

// escapeQueryString escapes special characters in Drive query strings
func escapeQueryString(s string) string {
	// Escape backslash first, then single quote
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	return s
}

func (a *Adapter) getFile(ctx context.Context, id string) (*drive.File, error) {
	return transient.DoWithData(ctx, a.log, "stat", isTransient, func() (*drive.File, error) {
		f, err := a.service.Files.Get(id).Fields(fileFields).Context(ctx).Do()
		return f, a.mapError(err)
	})
}

// getFileID returns the ID of a file or folder at the given path
func (a *Adapter) getFileID(ctx context.Context, fullPath string) (string, error) {
	// Check cache first
	if id, ok := a.cache.get(fullPath); ok {
		return id, nil
	}

	// Empty path means root of Drive
	if fullPath == "" {
		return "root", nil
	}

	// Walk the path from root
	parts := strings.Split(strings.TrimPrefix(fullPath, "/"), "/")
	currentID := "root"

	for i, part := range parts {
		if part == "" {
			continue
		}

		partialPath := "/" + strings.Join(parts[:i+1], "/")
		if id, ok := a.cache.get(partialPath); ok {
			currentID = id
			continue
		}

		// Escape single quotes to prevent query injection
		query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escapeQueryString(part), currentID)
		fileList, err := transient.DoWithData(ctx, a.log, "lookup", isTransient, func() (*drive.FileList, error) {
			fl, err := a.service.Files.List().
				Q(query).
				PageSize(1).
				Fields("files(id, mimeType)").
				Context(ctx).Do()
			return fl, a.mapError(err)
		})
		if err != nil {
			return "", err
		}

		if len(fileList.Files) == 0 {
			return "", fmt.Errorf("%s: %w", partialPath, domain.ErrNotFound)
		}
		if i < len(parts)-1 && fileList.Files[0].MimeType != MimeTypeFolder {
			return "", fmt.Errorf("%s: %w", partialPath, domain.ErrNotDirectory)
		}

		currentID = fileList.Files[0].Id
		a.cache.set(partialPath, currentID)
	}

	return currentID, nil
}

// getOrCreateFolderID returns the ID of a folder, creating it if necessary
func (a *Adapter) getOrCreateFolderID(ctx context.Context, fullPath string) (string, error) {
	if fullPath == "" {
		return "root", nil
	}

	// Check cache
	if id, ok := a.cache.get(fullPath); ok {
		return id, nil
	}

	parts := strings.Split(strings.TrimPrefix(fullPath, "/"), "/")
	currentID := "root"

	for i, part := range parts {
		if part == "" {
			continue
		}

		partialPath := "/" + strings.Join(parts[:i+1], "/")

		// Check cache for this partial path
		if id, ok := a.cache.get(partialPath); ok {
			currentID = id
			continue
		}

		// Look for existing folder with escaped query
		query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
			escapeQueryString(part), currentID, MimeTypeFolder)
		fileList, err := transient.DoWithData(ctx, a.log, "lookup", isTransient, func() (*drive.FileList, error) {
			fl, err := a.service.Files.List().
				Q(query).
				PageSize(1).
				Fields("files(id)").
				Context(ctx).Do()
			return fl, a.mapError(err)
		})
		if err != nil {
			return "", err
		}

		if len(fileList.Files) > 0 {
			currentID = fileList.Files[0].Id
		} else {
			parent := currentID
			created, err := transient.DoWithData(ctx, a.log, "mkdir", isTransient, func() (*drive.File, error) {
				f, err := a.service.Files.Create(&drive.File{
					Name:     part,
					MimeType: MimeTypeFolder,
					Parents:  []string{parent},
				}).
					Fields("id").
					Context(ctx).Do()
				return f, a.mapError(err)
			})
			if err != nil {
				return "", err
			}
			currentID = created.Id
		}

		a.cache.set(partialPath, currentID)
	}

	return currentID, nil
}

// itemFromDrive converts a Drive file to a domain.Item
func itemFromDrive(f *drive.File) domain.Item {
	it := domain.Item{Name: f.Name, Index: -1, Type: domain.ItemFile}
	if f.MimeType == MimeTypeFolder {
		it.Type = domain.ItemDir
		return it
	}
	switch {
	case f.Size > math.MaxUint32:
		it.Size = math.MaxUint32
	case f.Size > 0:
		it.Size = uint32(f.Size)
	}
	return it
}

// mapError converts Google API errors to domain errors.
// The original error stays in the chain.
func (a *Adapter) mapError(err error) error {
	if err == nil {
		return nil
	}
	if transient.IsCanceled(err) {
		return err
	}

	// Use Google API error types for more reliable error detection
	var apiErr *googleapi.Error
	if ok := errors.As(err, &apiErr); ok {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		case http.StatusForbidden:
			if isRateLimitReason(apiErr) {
				return fmt.Errorf("rate limit exceeded: %w: %w", domain.ErrNetworkError, err)
			}
			return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
		case http.StatusConflict:
			return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("rate limit exceeded: %w: %w", domain.ErrNetworkError, err)
		}
		if apiErr.Code >= 500 {
			return fmt.Errorf("%w: %w", domain.ErrNetworkError, err)
		}
		return err
	}

	if os.IsTimeout(err) || transient.IsNetwork(err) {
		return fmt.Errorf("%w: %w", domain.ErrNetworkError, err)
	}

	// Fallback to string matching for non-googleapi errors
	if strings.Contains(err.Error(), "notFound") {
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}

	return err
}

func isRateLimitReason(apiErr *googleapi.Error) bool {
	for _, e := range apiErr.Errors {
		if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}

// isTransient selects the mapped errors worth another attempt
func isTransient(err error) bool {
	return errors.Is(err, domain.ErrNetworkError) && !transient.IsCanceled(err)
}
