package github

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v66/github"
)

// ErrPublishFailed wraps every failed write to the repository.
var ErrPublishFailed = errors.New("publish failed")

// Publisher writes generated files into one branch of one repository using
// the contents API. A write carries the current blob sha, so it replaces
// whatever is there instead of conflicting. There is no retry on conflict.
type Publisher struct {
	client *gh.Client
	owner  string
	repo   string
	branch string
}

func NewPublisher(token, owner, repo, branch string) *Publisher {
	return NewPublisherWithClient(gh.NewClient(nil).WithAuthToken(token), owner, repo, branch)
}

// NewPublisherWithClient lets tests point the client at a fake server.
func NewPublisherWithClient(client *gh.Client, owner, repo, branch string) *Publisher {
	return &Publisher{client: client, owner: owner, repo: repo, branch: branch}
}

// Publish creates or replaces path with content.
func (p *Publisher) Publish(ctx context.Context, path string, content []byte, message string) error {
	sha, err := p.currentSHA(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, path, err)
	}

	// Skip a commit when the file already holds these bytes.
	if sha != "" && sha == BlobSHA(content) {
		return nil
	}

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: content,
		Branch:  gh.String(p.branch),
	}
	if sha != "" {
		opts.SHA = gh.String(sha)
		_, _, err = p.client.Repositories.UpdateFile(ctx, p.owner, p.repo, path, opts)
	} else {
		_, _, err = p.client.Repositories.CreateFile(ctx, p.owner, p.repo, path, opts)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, path, err)
	}
	return nil
}

// PublishImage writes the same image under every path. All paths are
// attempted; the joined error lists the ones that failed.
func (p *Publisher) PublishImage(ctx context.Context, data []byte, message string, paths ...string) error {
	var errs []error
	for _, path := range paths {
		if err := p.Publish(ctx, path, data, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// currentSHA returns "" when the file does not exist yet.
func (p *Publisher) currentSHA(ctx context.Context, path string) (string, error) {
	file, _, resp, err := p.client.Repositories.GetContents(ctx, p.owner, p.repo, path,
		&gh.RepositoryContentGetOptions{Ref: p.branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	if file == nil {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return file.GetSHA(), nil
}

// BlobSHA computes the git blob id of content.
func BlobSHA(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
