// Package gitclient reads files from a remote Git repository without checking
// out a worktree. docmeta uses it to read transformer configuration and
// record streams committed to a repo, pinned to a branch or tag.
package gitclient

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Auth holds Basic Auth credentials.
// For Bitbucket Cloud access tokens, use "x-token-auth" as Username
// and the token as Password.
type Auth struct {
	Username string
	Password string // or Token
}

// Client holds the repository in memory.
type Client struct {
	repo *git.Repository
	auth *http.BasicAuth
}

func NewClient(url string, auth *Auth) (*Client, error) {
	// In-memory storage
	storer := memory.NewStorage()

	var basicAuth *http.BasicAuth
	if auth != nil {
		basicAuth = &http.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}
	}

	cloneOpts := &git.CloneOptions{
		URL:        url,
		NoCheckout: true, // Don't inflate files into a worktree, we only read blobs.
		Progress:   nil,
		Depth:      0, // Full history, so we can jump between divergent refs.
	}
	if basicAuth != nil {
		cloneOpts.Auth = basicAuth
	}

	repo, err := git.Clone(storer, nil, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", url, err)
	}

	return &Client{repo: repo, auth: basicAuth}, nil
}

// Update fetches new objects and refs from the remote.
func (c *Client) Update() error {
	opts := &git.FetchOptions{Force: true, Tags: git.AllTags}
	if c.auth != nil {
		opts.Auth = c.auth
	}
	err := c.repo.Fetch(opts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// ListReferences returns the short names of all branches and tags.
func (c *Client) ListReferences() ([]string, error) {
	refMap := make(map[string]bool)

	refs, err := c.repo.References()
	if err != nil {
		return nil, err
	}

	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		if name.IsTag() || name.IsBranch() {
			refMap[name.Short()] = true
		} else if name.IsRemote() {
			// e.g. refs/remotes/origin/main -> Short() is "origin/main".
			// We want to strip the remote name.
			short := name.Short()
			if slashIdx := strings.Index(short, "/"); slashIdx != -1 {
				refMap[short[slashIdx+1:]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var references []string
	for v := range refMap {
		references = append(references, v)
	}
	return references, nil
}

func (c *Client) resolveRevision(revision string) (*plumbing.Hash, error) {
	hash, err := c.repo.ResolveRevision(plumbing.Revision(revision))
	if err == nil {
		return hash, nil
	}

	// Try with origin/ prefix if not found (common for clones).
	if !strings.HasPrefix(revision, "refs/") {
		if hash, err := c.repo.ResolveRevision(plumbing.Revision("origin/" + revision)); err == nil {
			return hash, nil
		}
	}

	return nil, fmt.Errorf("revision not found: %w", err)
}

// ReadFile reads the blob at filePath as of the given revision (tag, branch,
// or commit hash).
func (c *Client) ReadFile(revision, filePath string) ([]byte, error) {
	hash, err := c.resolveRevision(revision)
	if err != nil {
		return nil, err
	}

	commit, err := c.repo.CommitObject(*hash)
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	file, err := tree.File(filePath)
	if err != nil {
		return nil, err // Returns object.ErrFileNotFound if missing
	}

	reader, err := file.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// ListFilesRecursive lists all files under dirPath (recursively) as of the
// given revision. The returned paths are relative to dirPath.
func (c *Client) ListFilesRecursive(revision, dirPath string) ([]string, error) {
	hash, err := c.resolveRevision(revision)
	if err != nil {
		return nil, fmt.Errorf("revision resolution failed: %w", err)
	}

	commit, err := c.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("commit lookup failed: %w", err)
	}

	rootTree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get root tree: %w", err)
	}

	// Navigate to the specific subdirectory (if provided).
	var targetTree *object.Tree
	if dirPath == "" || dirPath == "." || dirPath == "/" {
		targetTree = rootTree
	} else {
		// Tree() returns an error if the path doesn't exist or isn't a directory.
		targetTree, err = rootTree.Tree(dirPath)
		if err != nil {
			return nil, fmt.Errorf("directory %q not found or invalid: %w", dirPath, err)
		}
	}

	var filePaths []string
	filesIter := targetTree.Files()
	defer filesIter.Close()

	err = filesIter.ForEach(func(f *object.File) error {
		// f.Name is the path relative to targetTree.
		filePaths = append(filePaths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iteration failed: %w", err)
	}

	return filePaths, nil
}
