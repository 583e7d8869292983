package mount

import (
	"context"
	"fmt"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// ServerOptions configures the kernel mount
type ServerOptions struct {
	FsName     string
	AllowOther bool
}

// Mount attaches fs at mountPoint. The caller runs Serve on the result.
func Mount(fs *FileSystem, mountPoint string, opts ServerOptions) (*fuse.Server, error) {
	fsName := opts.FsName
	if fsName == "" {
		fsName = "agcfs"
	}
	server, err := fuse.NewServer(fs, mountPoint, &fuse.MountOptions{
		FsName:     fsName,
		Name:       "agcfs",
		AllowOther: opts.AllowOther,
		Options:    []string{"ro"},
		Debug:      fs.verbose.Has(types.VerboseFuseCmd),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mount %s: %w", mountPoint, err)
	}
	fs.logger.Info().Str("mount_point", mountPoint).Msg("volume mounted")
	return server, nil
}

// Serve handles requests until ctx is cancelled or the file system is unmounted from
// outside, then unmounts
func Serve(ctx context.Context, server *fuse.Server) error {
	done := make(chan struct{})
	go func() {
		server.Serve()
		close(done)
	}()
	if err := server.WaitMount(); err != nil {
		return fmt.Errorf("failed to wait for mount: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if err := server.Unmount(); err != nil {
			return fmt.Errorf("failed to unmount: %w", err)
		}
		<-done
		return nil
	}
}
