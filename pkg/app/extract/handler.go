package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/deploymenttheory/go-agcfs/internal/services"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// Handle processes an extraction request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx.Log(fmt.Sprintf("Extracting %s from %s", req.Source, req.Target.String()))
	ctx.Progress("Opening volume...", 5)

	// 2. Mount the volume and resolve the source
	vol, err := app.OpenVolume(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	defer vol.Close()

	node, err := vol.Lookup(req.Source)
	if err != nil {
		return nil, app.WrapError(fmt.Sprintf("failed to find %s", req.Source), err)
	}

	x := &extractor{ctx: ctx, vol: vol.Volume, req: req, response: &Response{}}

	// 3. Copy the contents out
	if !node.IsDir() {
		dest := req.Destination
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			dest = filepath.Join(dest, node.Name)
		}
		if err := x.file(node, path.Clean("/"+req.Source), dest); err != nil {
			return nil, err
		}
	} else {
		if !req.Recursive {
			return nil, app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("%s is a directory, use recursive extraction", req.Source), nil)
		}
		if err := x.tree(node); err != nil {
			return nil, err
		}
	}

	x.response.ElapsedTime = time.Since(startTime)
	ctx.Progress("Complete", 100)
	ctx.Log(fmt.Sprintf("Extraction completed: %d files, %d bytes in %v",
		len(x.response.Files), x.response.TotalBytes, x.response.ElapsedTime))
	return x.response, nil
}

type extractor struct {
	ctx      *app.Context
	vol      *services.Volume
	req      *Request
	response *Response
}

// tree recreates the directory below Destination, depth first
func (x *extractor) tree(root *services.Node) error {
	base := path.Clean("/" + x.req.Source)
	var names []string
	return x.vol.Tree().Walk(root.FileID, func(node *services.Node, depth int) error {
		if err := x.ctx.Err(); err != nil {
			return err
		}
		names = append(names[:depth], node.Name)
		rel := filepath.Join(names[1:]...)
		dest := filepath.Join(x.req.Destination, rel)
		source := path.Join(append([]string{base}, names[1:]...)...)

		if node.IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return app.NewError(app.ErrCodeImageAccess, fmt.Sprintf("failed to create %s", dest), err)
			}
			x.response.Directories++
			return nil
		}
		return x.file(node, source, dest)
	})
}

// file copies one regular file to dest. Volume errors are recorded rather than returned
// when the request continues on error.
func (x *extractor) file(node *services.Node, source, dest string) error {
	if !x.req.Overwrite {
		if _, err := os.Lstat(dest); err == nil {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("%s already exists", dest), nil)
		}
	}

	n, err := x.copyOut(node, dest)
	if err != nil {
		var common *app.CommonError
		if x.req.ContinueOnError && !errors.As(err, &common) {
			x.ctx.Logger.Warn().Err(err).Str("source", source).Msg("skipping unreadable file")
			x.response.Failures = append(x.response.Failures, Failure{
				Source: source,
				Code:   app.ClassifyError(err),
				Error:  err.Error(),
			})
			os.Remove(dest)
			return nil
		}
		if errors.As(err, &common) {
			return err
		}
		return app.WrapError(fmt.Sprintf("failed to extract %s", source), err)
	}

	x.response.Files = append(x.response.Files, ExtractedFile{
		Source:      source,
		Destination: dest,
		FileID:      node.FileID,
		Size:        n,
	})
	x.response.TotalBytes += n
	x.ctx.Progress(fmt.Sprintf("Extracted %s", source), 50)
	return nil
}

// copyOut streams the contents of node into dest. Host file failures come back as
// CommonErrors, volume read failures as engine errors.
func (x *extractor) copyOut(node *services.Node, dest string) (int64, error) {
	reader, err := x.vol.OpenContent(node.FileID)
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, app.NewError(app.ErrCodeImageAccess, fmt.Sprintf("failed to create %s", dest), err)
	}
	n, copyErr := io.Copy(out, reader.Stream())
	if err := out.Close(); err != nil && copyErr == nil {
		return n, app.NewError(app.ErrCodeImageAccess, fmt.Sprintf("failed to write %s", dest), err)
	}
	if copyErr != nil {
		return n, copyErr
	}

	mtime := time.Unix(int64(node.Header.Mtime), 0)
	if err := os.Chtimes(dest, mtime, mtime); err != nil {
		x.ctx.Logger.Debug().Err(err).Str("destination", dest).Msg("failed to set modification time")
	}
	return n, nil
}
