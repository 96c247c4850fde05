package bridge

import (
	"errors"
	"fmt"

	"github.com/Cyclone1070/coursevfs/internal/gitops"
)

func required(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	return nil
}

// Empty is the result of operations that return nothing.
type Empty struct{}

// -- File operations --

type PathRequest struct {
	Path string `mapstructure:"path"`
}

func (r PathRequest) Validate() error { return required("path", r.Path) }

// WriteFileRequest carries either UTF-8 text or base64-encoded bytes.
type WriteFileRequest struct {
	Path string  `mapstructure:"path"`
	Text *string `mapstructure:"text"`
	Data []byte  `mapstructure:"data"`
}

func (r WriteFileRequest) Validate() error {
	if err := required("path", r.Path); err != nil {
		return err
	}
	if (r.Text == nil) == (r.Data == nil) {
		return errors.New("exactly one of text or data is required")
	}
	return nil
}

func (r WriteFileRequest) bytes() []byte {
	if r.Text != nil {
		return []byte(*r.Text)
	}
	return r.Data
}

const (
	EncodingUTF8   = "utf8"
	EncodingBase64 = "base64"
)

type ReadFileRequest struct {
	Path     string `mapstructure:"path"`
	Encoding string `mapstructure:"encoding"`
}

func (r ReadFileRequest) Validate() error {
	if err := required("path", r.Path); err != nil {
		return err
	}
	switch r.Encoding {
	case "", EncodingUTF8, EncodingBase64:
		return nil
	}
	return fmt.Errorf("unsupported encoding %q", r.Encoding)
}

// ReadFileResponse holds file content as text, or base64 when Encoding says so.
type ReadFileResponse struct {
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

type CopyFileRequest struct {
	Src  string `mapstructure:"src"`
	Dest string `mapstructure:"dest"`
}

func (r CopyFileRequest) Validate() error {
	return errors.Join(required("src", r.Src), required("dest", r.Dest))
}

type RenameRequest struct {
	OldPath string `mapstructure:"oldPath"`
	NewPath string `mapstructure:"newPath"`
}

func (r RenameRequest) Validate() error {
	return errors.Join(required("oldPath", r.OldPath), required("newPath", r.NewPath))
}

type RecursiveRequest struct {
	Path      string `mapstructure:"path"`
	Recursive bool   `mapstructure:"recursive"`
}

func (r RecursiveRequest) Validate() error { return required("path", r.Path) }

type SymlinkRequest struct {
	Target string `mapstructure:"target"`
	Path   string `mapstructure:"path"`
}

func (r SymlinkRequest) Validate() error {
	return errors.Join(required("target", r.Target), required("path", r.Path))
}

// ChmodRequest accepts the mode as a number or an octal string.
type ChmodRequest struct {
	Path string `mapstructure:"path"`
	Mode any    `mapstructure:"mode"`
}

func (r ChmodRequest) Validate() error {
	if r.Mode == nil {
		return fmt.Errorf("%w: mode", ErrMissingArgument)
	}
	return required("path", r.Path)
}

type FolderStructureRequest struct {
	Root           string `mapstructure:"root"`
	Base           string `mapstructure:"base"`
	IncludeContent bool   `mapstructure:"includeContent"`
	Raw            bool   `mapstructure:"raw"`
}

func (r FolderStructureRequest) Validate() error { return required("root", r.Root) }

// -- Git operations --

type RepoRequest struct {
	Repo string `mapstructure:"repo"`
}

func (r RepoRequest) Validate() error { return required("repo", r.Repo) }

type InitRequest struct {
	Repo          string `mapstructure:"repo"`
	DefaultBranch string `mapstructure:"defaultBranch"`
}

func (r InitRequest) Validate() error { return required("repo", r.Repo) }

type CloneRequest struct {
	Repo               string `mapstructure:"repo"`
	URL                string `mapstructure:"url"`
	Branch             string `mapstructure:"branch"`
	Shallow            bool   `mapstructure:"shallow"`
	gitops.Credentials `mapstructure:",squash"`
}

func (r CloneRequest) Validate() error {
	return errors.Join(required("repo", r.Repo), required("url", r.URL))
}

type AddRemoteRequest struct {
	Repo   string `mapstructure:"repo"`
	Remote string `mapstructure:"remote"`
	URL    string `mapstructure:"url"`
}

func (r AddRemoteRequest) Validate() error {
	return errors.Join(required("repo", r.Repo), required("url", r.URL))
}

type GetConfigRequest struct {
	Repo string `mapstructure:"repo"`
	Key  string `mapstructure:"key"`
}

func (r GetConfigRequest) Validate() error {
	return errors.Join(required("repo", r.Repo), required("key", r.Key))
}

// ConfigValue is the result of getConfig.
type ConfigValue struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

type SetConfigRequest struct {
	Repo  string `mapstructure:"repo"`
	Key   string `mapstructure:"key"`
	Value string `mapstructure:"value"`
}

func (r SetConfigRequest) Validate() error {
	return errors.Join(required("repo", r.Repo), required("key", r.Key))
}

type FileRequest struct {
	Repo string `mapstructure:"repo"`
	File string `mapstructure:"filepath"`
}

func (r FileRequest) Validate() error {
	return errors.Join(required("repo", r.Repo), required("filepath", r.File))
}

type CommitRequest struct {
	Repo    string          `mapstructure:"repo"`
	Message string          `mapstructure:"message"`
	Author  gitops.Identity `mapstructure:"author"`
}

func (r CommitRequest) Validate() error {
	return errors.Join(required("repo", r.Repo), required("message", r.Message))
}

// CommitResponse is the result of commit.
type CommitResponse struct {
	Hash string `json:"oid"`
}

type PushRequest struct {
	Repo               string `mapstructure:"repo"`
	gitops.Credentials `mapstructure:",squash"`
}

func (r PushRequest) Validate() error { return required("repo", r.Repo) }

type PullRequest struct {
	Repo               string `mapstructure:"repo"`
	Branch             string `mapstructure:"branch"`
	gitops.Credentials `mapstructure:",squash"`
}

func (r PullRequest) Validate() error { return required("repo", r.Repo) }

type CheckoutRequest struct {
	Repo   string `mapstructure:"repo"`
	Branch string `mapstructure:"branch"`
}

func (r CheckoutRequest) Validate() error {
	return errors.Join(required("repo", r.Repo), required("branch", r.Branch))
}

type WriteRefRequest struct {
	Repo   string `mapstructure:"repo"`
	Branch string `mapstructure:"branch"`
	Hash   string `mapstructure:"oid"`
	Force  *bool  `mapstructure:"force"`
}

func (r WriteRefRequest) Validate() error {
	return errors.Join(required("repo", r.Repo), required("branch", r.Branch), required("oid", r.Hash))
}

// force is true unless the caller sent force=false.
func (r WriteRefRequest) force() bool {
	return r.Force == nil || *r.Force
}

type ResolveRefRequest struct {
	Repo   string `mapstructure:"repo"`
	Ref    string `mapstructure:"ref"`
	Remote bool   `mapstructure:"remote"`
}

func (r ResolveRefRequest) Validate() error {
	return errors.Join(required("repo", r.Repo), required("ref", r.Ref))
}

type LogRequest struct {
	Repo  string `mapstructure:"repo"`
	Depth int    `mapstructure:"depth"`
}

func (r LogRequest) Validate() error {
	if r.Depth < 0 {
		return fmt.Errorf("depth must not be negative, got %d", r.Depth)
	}
	return required("repo", r.Repo)
}

type StashRequest struct {
	Repo    string         `mapstructure:"repo"`
	Op      gitops.StashOp `mapstructure:"op"`
	Message string         `mapstructure:"message"`
}

func (r StashRequest) Validate() error { return required("repo", r.Repo) }
