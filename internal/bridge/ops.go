package bridge

import (
	"context"
	"encoding/base64"

	"github.com/Cyclone1070/coursevfs/internal/fsops"
	"github.com/Cyclone1070/coursevfs/internal/gitops"
	"github.com/Cyclone1070/coursevfs/internal/tree"
)

// FileHandlers exposes FileOps.
func FileHandlers(svc *fsops.Service) []Handler {
	return []Handler{
		NewHandler("writeFile", func(ctx context.Context, req WriteFileRequest) (Empty, error) {
			return Empty{}, svc.WriteFile(ctx, req.Path, req.bytes())
		}),
		NewHandler("readFile", func(ctx context.Context, req ReadFileRequest) (ReadFileResponse, error) {
			data, err := svc.ReadFile(ctx, req.Path)
			if err != nil {
				return ReadFileResponse{}, err
			}
			if req.Encoding == EncodingBase64 {
				return ReadFileResponse{Encoding: EncodingBase64, Content: base64.StdEncoding.EncodeToString(data)}, nil
			}
			return ReadFileResponse{Encoding: EncodingUTF8, Content: string(data)}, nil
		}),
		NewHandler("stat", func(ctx context.Context, req PathRequest) (*fsops.FileStat, error) {
			return svc.Stat(ctx, req.Path)
		}),
		NewHandler("exists", func(ctx context.Context, req PathRequest) (bool, error) {
			return svc.Exists(ctx, req.Path)
		}),
		NewHandler("copyFile", func(ctx context.Context, req CopyFileRequest) (Empty, error) {
			return Empty{}, svc.CopyFile(ctx, req.Src, req.Dest)
		}),
		NewHandler("rm", func(ctx context.Context, req RecursiveRequest) (Empty, error) {
			return Empty{}, svc.Rm(ctx, req.Path, req.Recursive)
		}),
		NewHandler("rename", func(ctx context.Context, req RenameRequest) (Empty, error) {
			return Empty{}, svc.Rename(ctx, req.OldPath, req.NewPath)
		}),
		NewHandler("mkdir", func(ctx context.Context, req RecursiveRequest) (Empty, error) {
			return Empty{}, svc.Mkdir(ctx, req.Path, req.Recursive)
		}),
		NewHandler("readdir", func(ctx context.Context, req PathRequest) ([]fsops.DirEntry, error) {
			return svc.Readdir(ctx, req.Path)
		}),
		NewHandler("readlink", func(ctx context.Context, req PathRequest) (string, error) {
			return svc.Readlink(ctx, req.Path)
		}),
		NewHandler("symlink", func(ctx context.Context, req SymlinkRequest) (Empty, error) {
			return Empty{}, svc.Symlink(ctx, req.Target, req.Path)
		}),
		NewHandler("chmod", func(ctx context.Context, req ChmodRequest) (Empty, error) {
			return Empty{}, svc.Chmod(ctx, req.Path, req.Mode)
		}),
	}
}

// TreeHandlers exposes the folder-structure serializer.
func TreeHandlers(s *tree.Serializer) []Handler {
	return []Handler{
		NewHandler("getFolderStructure", func(ctx context.Context, req FolderStructureRequest) ([]tree.Node, error) {
			base := req.Base
			if base == "" {
				base = req.Root
			}
			return s.Serialize(ctx, req.Root, base, req.IncludeContent, req.Raw)
		}),
	}
}

// GitHandlers exposes the git porcelain and the stash diff.
func GitHandlers(svc *gitops.Service) []Handler {
	return []Handler{
		NewHandler("initRepo", func(ctx context.Context, req InitRequest) (Empty, error) {
			return Empty{}, svc.Init(ctx, req.Repo, req.DefaultBranch)
		}),
		NewHandler("cloneRepo", func(ctx context.Context, req CloneRequest) (Empty, error) {
			return Empty{}, svc.Clone(ctx, req.Repo, req.URL, req.Branch, req.Shallow, req.Credentials)
		}),
		NewHandler("addRemote", func(ctx context.Context, req AddRemoteRequest) (Empty, error) {
			return Empty{}, svc.AddRemote(ctx, req.Repo, req.Remote, req.URL)
		}),
		NewHandler("listRemotes", func(ctx context.Context, req RepoRequest) ([]gitops.Remote, error) {
			return svc.ListRemotes(ctx, req.Repo)
		}),
		NewHandler("getConfig", func(ctx context.Context, req GetConfigRequest) (ConfigValue, error) {
			value, found, err := svc.GetConfig(ctx, req.Repo, req.Key)
			return ConfigValue{Value: value, Found: found}, err
		}),
		NewHandler("setConfig", func(ctx context.Context, req SetConfigRequest) (Empty, error) {
			return Empty{}, svc.SetConfig(ctx, req.Repo, req.Key, req.Value)
		}),
		NewHandler("add", func(ctx context.Context, req FileRequest) (Empty, error) {
			return Empty{}, svc.Add(ctx, req.Repo, req.File)
		}),
		NewHandler("remove", func(ctx context.Context, req FileRequest) (Empty, error) {
			return Empty{}, svc.Remove(ctx, req.Repo, req.File)
		}),
		NewHandler("resetIndex", func(ctx context.Context, req FileRequest) (Empty, error) {
			return Empty{}, svc.ResetIndex(ctx, req.Repo, req.File)
		}),
		NewHandler("resolveFile", func(ctx context.Context, req FileRequest) (string, error) {
			return svc.ResolveFileStatus(ctx, req.Repo, req.File)
		}),
		NewHandler("commit", func(ctx context.Context, req CommitRequest) (CommitResponse, error) {
			hash, err := svc.Commit(ctx, req.Repo, req.Message, req.Author)
			return CommitResponse{Hash: hash}, err
		}),
		NewHandler("push", func(ctx context.Context, req PushRequest) (Empty, error) {
			return Empty{}, svc.Push(ctx, req.Repo, req.Credentials)
		}),
		NewHandler("pull", func(ctx context.Context, req PullRequest) (Empty, error) {
			return Empty{}, svc.Pull(ctx, req.Repo, req.Branch, req.Credentials)
		}),
		NewHandler("currentBranch", func(ctx context.Context, req RepoRequest) (string, error) {
			return svc.CurrentBranch(ctx, req.Repo)
		}),
		NewHandler("listBranches", func(ctx context.Context, req RepoRequest) ([]string, error) {
			return svc.ListBranches(ctx, req.Repo)
		}),
		NewHandler("checkout", func(ctx context.Context, req CheckoutRequest) (Empty, error) {
			return Empty{}, svc.Checkout(ctx, req.Repo, req.Branch)
		}),
		NewHandler("writeRef", func(ctx context.Context, req WriteRefRequest) (Empty, error) {
			return Empty{}, svc.WriteRef(ctx, req.Repo, req.Branch, req.Hash, req.force())
		}),
		NewHandler("resolveRef", func(ctx context.Context, req ResolveRefRequest) (string, error) {
			return svc.ResolveRef(ctx, req.Repo, req.Ref, req.Remote)
		}),
		NewHandler("log", func(ctx context.Context, req LogRequest) ([]gitops.CommitInfo, error) {
			return svc.Log(ctx, req.Repo, req.Depth)
		}),
		NewHandler("status", func(ctx context.Context, req RepoRequest) ([]gitops.StatusRow, error) {
			return svc.StatusMatrix(ctx, req.Repo)
		}),
		NewHandler("revertFileToHEAD", func(ctx context.Context, req FileRequest) (Empty, error) {
			return Empty{}, svc.RevertFileToHEAD(ctx, req.Repo, req.File)
		}),
		NewHandler("stash", func(ctx context.Context, req StashRequest) ([]gitops.StashEntry, error) {
			return svc.Stash(ctx, req.Repo, req.Op, req.Message)
		}),
		NewHandler("stashDiffStatus", func(ctx context.Context, req RepoRequest) ([]gitops.StashDiffEntry, error) {
			return svc.StashDiff(ctx, req.Repo)
		}),
	}
}
