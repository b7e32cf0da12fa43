package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vesaa/lansite/internal/content"
	"github.com/vesaa/lansite/internal/fsutil"
	"github.com/vesaa/lansite/internal/models"
	"github.com/vesaa/lansite/internal/registry"
	"github.com/vesaa/lansite/internal/share"
)

// contentFlags are shared by create and preview.
type contentFlags struct {
	content  string
	file     string
	markdown bool
	minify   bool
}

func (f *contentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.content, "content", "", "Page content")
	cmd.Flags().StringVar(&f.file, "file", "", "Read page content from a file (- for stdin)")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "Render the content as markdown")
	cmd.Flags().BoolVar(&f.minify, "minify", false, "Minify the resulting HTML")
	cmd.MarkFlagsMutuallyExclusive("content", "file")
	cmd.MarkFlagsOneRequired("content", "file")
}

// prepare reads the raw input and applies markdown/minify.
func (f *contentFlags) prepare(cmd *cobra.Command, a *app) (string, error) {
	raw := f.content
	switch {
	case f.file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		raw = string(data)
	case f.file != "":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return "", fmt.Errorf("read content: %w", err)
		}
		raw = string(data)
	}
	return content.NewPreparer().Prepare(raw, content.Options{
		Markdown: f.markdown,
		Minify:   f.minify || a.cfg.Minify,
	})
}

// resolveSite finds a site by its exact name, falling back to its link.
func resolveSite(reg *registry.Registry, target string) (models.Entry, error) {
	site, err := reg.Get(target)
	if err == nil {
		return models.Entry{Name: target, Site: site}, nil
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return models.Entry{}, err
	}
	if e, ok := reg.Lookup(strings.TrimSpace(target)); ok {
		return e, nil
	}
	return models.Entry{}, fmt.Errorf("%w: no site named or linked %q", registry.ErrNotFound, target)
}

func newCreateCmd(g *globalFlags) *cobra.Command {
	var (
		name, link string
		cf         contentFlags
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a page as sites/<link>.html",
		Example: `  lansite create --name "Home" --link home --file index.html
  lansite create --name Notes --link notes --markdown --file notes.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !registry.ValidLink(link) {
				return fmt.Errorf("%w: link must contain only letters and digits", registry.ErrValidation)
			}
			a, err := openApp(cmd, g, true)
			if err != nil {
				return err
			}
			defer a.Close()

			page, err := cf.prepare(cmd, a)
			if err != nil {
				return err
			}
			if err := a.reg.Create(name, link, page); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Site '%s' created! Available at: %s\n",
				strings.TrimSpace(name), a.siteURL(strings.TrimSpace(link)))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name of the site")
	cmd.Flags().StringVar(&link, "link", "", "URL stem, letters and digits only")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("link")
	cf.register(cmd)
	return cmd
}

func newDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a site and its HTML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, g, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.reg.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Site '%s' deleted!\n", args[0])
			return nil
		},
	}
}

func newListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered sites in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			entries := a.reg.List()
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sites yet. Create one with: lansite create --name NAME --link LINK --file page.html")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLINK\tURL")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Link, a.siteURL(e.Link))
			}
			return tw.Flush()
		},
	}
}

func newShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME|LINK",
		Short: "Print a site's address and stored content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := resolveSite(a.reg, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name: %s\nLink: %s\nURL:  %s\n\n", e.Name, e.Link, a.siteURL(e.Link))
			fmt.Fprintln(out, e.Content)
			return nil
		},
	}
}

func newPreviewCmd(g *globalFlags) *cobra.Command {
	var (
		cf   contentFlags
		open bool
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Write unsaved content to the scratch preview page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			page, err := cf.prepare(cmd, a)
			if err != nil {
				return err
			}
			path, err := a.reg.Preview(page)
			if err != nil {
				return err
			}
			url := a.baseURL() + path
			fmt.Fprintf(cmd.OutOrStdout(), "Preview ready at: %s\n", url)
			if open {
				return share.OpenBrowser(url)
			}
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().BoolVar(&open, "open", false, "Open the preview in the default browser (needs a running serve)")
	return cmd
}

func newShareCmd(g *globalFlags) *cobra.Command {
	var (
		pngPath string
		open    bool
	)
	cmd := &cobra.Command{
		Use:   "share NAME|LINK",
		Short: "Show a QR code for a site's LAN address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := resolveSite(a.reg, args[0])
			if err != nil {
				return err
			}
			url := a.siteURL(e.Link)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Share this site: %s\n\n", url)

			if pngPath != "" {
				enc, err := share.NewEncoder()
				if err != nil {
					return err
				}
				defer enc.Close()
				png, err := enc.PNG(url, a.cfg.QRSize)
				if err != nil {
					return err
				}
				if err := fsutil.WriteFileAtomic(pngPath, png, 0o644); err != nil {
					return fmt.Errorf("write qr: %w", err)
				}
				fmt.Fprintf(out, "QR code saved to %s\n", pngPath)
			} else {
				code, err := share.Terminal(url)
				if err != nil {
					return err
				}
				fmt.Fprint(out, code)
			}

			if open {
				return share.OpenBrowser(url)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pngPath, "png", "", "Write the QR code to this PNG file instead of the terminal")
	cmd.Flags().BoolVar(&open, "open", false, "Open the site in the default browser")
	return cmd
}

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		limit int
		name  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent site creations and deletions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, g, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.hist == nil {
				return errors.New("history is disabled (history_db is empty)")
			}

			var events []models.SiteEvent
			if name != "" {
				events, err = a.hist.ForName(name)
			} else {
				events, err = a.hist.Recent(limit)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tKIND\tNAME\tLINK")
			for _, ev := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.At.Local().Format(time.DateTime), ev.Kind, ev.Name, ev.Link)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events")
	cmd.Flags().StringVar(&name, "name", "", "Only events for this site name")
	return cmd
}
