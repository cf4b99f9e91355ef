package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-api-client/internal/batch"
	"github.com/samvad-hq/samvad-api-client/pkg/api"
	"github.com/samvad-hq/samvad-api-client/pkg/httpclient"
)

func (c *cli) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH",
		Short: "GET a resource and print its envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := api.Get[any](cmd.Context(), c.api(), args[0], c.callOpts()...)
			if err != nil {
				return err
			}
			return render(c.stdout, c.format(), env)
		},
	}
}

func (c *cli) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete PATH",
		Short: "DELETE a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := api.Delete[any](cmd.Context(), c.api(), args[0], c.callOpts()...)
			if err != nil {
				return err
			}
			return render(c.stdout, c.format(), env)
		},
	}
}

// newBodyCmd builds post, put and patch.
func (c *cli) newBodyCmd(verb string) *cobra.Command {
	var data, dataFile string
	cmd := &cobra.Command{
		Use:   verb + " PATH",
		Short: strings.ToUpper(verb) + " a JSON body to PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := loadBody(data, dataFile)
			if err != nil {
				return err
			}

			ctx, path, opts := cmd.Context(), args[0], c.callOpts()
			var env *api.Envelope[any]
			switch verb {
			case "post":
				env, err = api.Post[any](ctx, c.api(), path, body, opts...)
			case "put":
				env, err = api.Put[any](ctx, c.api(), path, body, opts...)
			default:
				env, err = api.Patch[any](ctx, c.api(), path, body, opts...)
			}
			if err != nil {
				return err
			}
			return render(c.stdout, c.format(), env)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "Inline JSON body")
	cmd.Flags().StringVarP(&dataFile, "data-file", "f", "", "Body file (.json, .yaml or .yml)")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")
	return cmd
}

func loadBody(data, dataFile string) (any, error) {
	switch {
	case dataFile != "":
		return batch.LoadBody(dataFile)
	case strings.TrimSpace(data) != "":
		var body any
		if err := json.Unmarshal([]byte(data), &body); err != nil {
			return nil, fmt.Errorf("--data is not valid JSON: %w", err)
		}
		return body, nil
	default:
		return nil, nil
	}
}

func (c *cli) newListCmd() *cobra.Command {
	var (
		q         api.PaginationQuery
		sortOrder string
	)
	cmd := &cobra.Command{
		Use:   "list PATH",
		Short: "Fetch one page of a list endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.SortOrder = api.SortOrder(strings.ToLower(strings.TrimSpace(sortOrder)))
			q.Extra = c.query
			env, err := api.GetPaginated[any](cmd.Context(), c.api(), args[0], q)
			if err != nil {
				return err
			}
			return render(c.stdout, c.format(), env)
		},
	}
	f := cmd.Flags()
	f.IntVar(&q.Page, "page", 0, "Page number (default 1)")
	f.IntVar(&q.PageSize, "page-size", 0, "Page size (default 10)")
	f.StringVar(&q.Search, "search", "", "Search term")
	f.StringVar(&q.SortBy, "sort-by", "", "Sort field")
	f.StringVar(&sortOrder, "sort-order", "", "Sort order: asc or desc")
	return cmd
}

func (c *cli) newUploadCmd() *cobra.Command {
	var files, fields []string
	cmd := &cobra.Command{
		Use:   "upload PATH",
		Short: "Upload files as multipart/form-data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePairs, err := parsePairs(files, "--file")
			if err != nil {
				return err
			}
			fieldPairs, err := parsePairs(fields, "--field")
			if err != nil {
				return err
			}

			form := api.NewFormData()
			for _, p := range fieldPairs {
				form.Append(p.key, p.value)
			}

			var opened []*os.File
			defer func() {
				for _, f := range opened {
					_ = f.Close()
				}
			}()
			for _, p := range filePairs {
				f, err := os.Open(p.value)
				if err != nil {
					return fmt.Errorf("open %s: %w", p.value, err)
				}
				opened = append(opened, f)
				form.AppendFile(p.key, filepath.Base(p.value), f)
			}

			env, err := api.Upload[any](cmd.Context(), c.api(), args[0], form, c.progressLogger(args[0]), c.callOpts()...)
			if err != nil {
				return err
			}
			return render(c.stdout, c.format(), env)
		},
	}
	cmd.Flags().StringArrayVar(&files, "file", nil, "File part as FIELD=PATH (repeatable)")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "Text part as KEY=VALUE (repeatable)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// progressLogger logs upload progress in steps of ten percent, or every callback when the
// total is unknown.
func (c *cli) progressLogger(path string) httpclient.ProgressFunc {
	last := int64(-10)
	return func(loaded, total int64) {
		meta := map[string]any{"path": path, "loaded": loaded, "total": total}
		if total <= 0 {
			c.log().DebugObj("upload progress", "upload", meta)
			return
		}
		pct := loaded * 100 / total
		if pct/10 == last/10 && loaded < total {
			return
		}
		last = pct
		meta["percent"] = pct
		c.log().InfoObj("upload progress", "upload", meta)
	}
}

func (c *cli) newDownloadCmd() *cobra.Command {
	var filename, outDir string
	cmd := &cobra.Command{
		Use:   "download PATH",
		Short: "Download a file and write it to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := c.api().Download(cmd.Context(), args[0], filename, c.callOpts()...)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			dest := filepath.Join(outDir, file.Filename)
			if err := os.WriteFile(dest, file.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", dest, err)
			}
			_, err = fmt.Fprintln(c.stdout, dest)
			return err
		},
	}
	cmd.Flags().StringVar(&filename, "filename", "", "Name to use when the server sends none")
	cmd.Flags().StringVar(&outDir, "out", ".", "Directory to write the file into")
	return cmd
}

func (c *cli) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run PLAN",
		Short: "Run every call in a YAML/JSON plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := batch.LoadPlan(args[0])
			if err != nil {
				return err
			}
			results, runErr := batch.NewRunner(c.api(), c.log()).Run(cmd.Context(), plan)
			if err := render(c.stdout, c.format(), results); err != nil {
				return errors.Join(runErr, err)
			}
			if runErr != nil {
				return fmt.Errorf("plan finished with failures: %v", runErr)
			}
			return nil
		},
	}
}
