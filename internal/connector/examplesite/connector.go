// Package examplesite is a demonstration connector for example.com. It
// performs no network I/O: metadata and downloads are simulated, which makes
// it useful for trying the engine end to end and for manual testing of the
// control surface.
package examplesite

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mangadl/manga-downloader/internal/connector"
	"github.com/mangadl/manga-downloader/internal/model"
	"github.com/mangadl/manga-downloader/internal/platform"
	"github.com/mangadl/manga-downloader/internal/token"
)

const (
	chapterCount    = 50
	pagesPerChapter = 20
	pageBytes       = 200_000
)

var supportedDomains = []string{"example.com", "manga.example.com"}

// Connector simulates a manga source. PageDelay throttles the simulated
// page writes; zero keeps downloads instant for tests.
type Connector struct {
	PageDelay time.Duration
}

func New() *Connector {
	return &Connector{PageDelay: 50 * time.Millisecond}
}

func (c *Connector) Describe() connector.Descriptor {
	return connector.Descriptor{
		ID:              "examplesite",
		Name:            "Example Site",
		Version:         "1.0.0",
		Author:          "MangaDL Team",
		Description:     "Demo connector that simulates manga downloads from example.com",
		Domains:         supportedDomains,
		ContractVersion: connector.ContractVersion,
	}
}

func (c *Connector) Matches(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	domain := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	for _, d := range supportedDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// Normalize forces https, strips the www prefix, and trims trailing slashes
func (c *Connector) Normalize(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	path := strings.TrimRight(parsed.Path, "/")
	if path == "" {
		path = "/"
	}
	return "https://" + host + path
}

// FetchInfo derives a deterministic catalog from the URL slug: 50 numbered
// chapters plus side-story halves, spread across three fixed groups.
func (c *Connector) FetchInfo(ctx context.Context, rawURL string) (*model.ContentInfo, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &model.ParseError{URL: rawURL, Err: err}
	}

	slug := "sample-manga"
	if parts := strings.Split(strings.Trim(parsed.Path, "/"), "/"); len(parts) > 0 && parts[len(parts)-1] != "" {
		slug = parts[len(parts)-1]
	}
	title := slugTitle(slug)

	groups := []model.Group{
		{ID: "team_a", Name: "Speed Scans", Language: "en"},
		{ID: "team_b", Name: "Quality Translations", Language: "en"},
		{ID: "team_c", Name: "Fan TL Group", Language: "en"},
	}

	var chapters []model.Chapter
	for i := 1; i <= chapterCount; i++ {
		chapters = append(chapters, model.Chapter{
			ID:        fmt.Sprintf("ch_%d", i),
			Number:    float64(i),
			Title:     fmt.Sprintf("Chapter %d: The Adventure Continues", i),
			URL:       fmt.Sprintf("%s/chapter/%d", rawURL, i),
			GroupID:   groups[i%len(groups)].ID,
			Language:  "en",
			PageCount: pagesPerChapter,
		})
	}
	for _, base := range []int{10, 25, 40} {
		chapters = append(chapters, model.Chapter{
			ID:        fmt.Sprintf("ch_%d_5", base),
			Number:    float64(base) + 0.5,
			Title:     fmt.Sprintf("Chapter %d.5: Side Story", base),
			URL:       fmt.Sprintf("%s/chapter/%d.5", rawURL, base),
			GroupID:   "team_a",
			Language:  "en",
			PageCount: pagesPerChapter / 2,
		})
	}
	model.SortChapters(chapters)

	return &model.ContentInfo{
		Title:       title,
		URL:         rawURL,
		Description: fmt.Sprintf("This is a demo manga %q for testing the connector system.", title),
		Author:      "Demo Author",
		Artist:      "Demo Artist",
		Status:      "ongoing",
		Chapters:    chapters,
		Groups:      groups,
	}, nil
}

func (c *Connector) DescribeOptions(info *model.ContentInfo) model.OptionsSchema {
	return model.OptionsSchema{Fields: []model.OptionField{
		{
			Key:         "image_quality",
			Label:       "Image Quality",
			Kind:        model.FieldDropdown,
			Choices:     []string{"Original", "High", "Medium", "Low"},
			Default:     "Original",
			Description: "Quality of downloaded images",
		},
		{
			Key:         "download_covers",
			Label:       "Download Covers",
			Kind:        model.FieldCheckbox,
			Default:     true,
			Description: "Download chapter cover images",
		},
	}}
}

func (c *Connector) BuildPlan(rawURL string, info *model.ContentInfo, sel model.Selection, opts map[string]any) (*model.DownloadPlan, error) {
	if sel.GroupID != "" {
		if _, ok := info.GroupByID(sel.GroupID); !ok {
			return nil, &model.SelectionError{Reason: fmt.Sprintf("unknown group %q", sel.GroupID)}
		}
	}
	chapters := sel.Filter(info.Chapters)
	if len(chapters) == 0 {
		return nil, &model.SelectionError{Reason: "selection matches no chapters"}
	}
	return &model.DownloadPlan{
		Title:    info.Title,
		Chapters: chapters,
		Options:  opts,
	}, nil
}

// Execute writes placeholder page files instead of fetching images. The
// token is polled before every chapter and every page, so pause and cancel
// behave exactly as they would against a real source.
func (c *Connector) Execute(ctx context.Context, plan *model.DownloadPlan, sink connector.ProgressSink, tok *token.Token) error {
	seriesDir := filepath.Join(plan.OutputDir, platform.SanitizeFilename(plan.Title))
	if err := platform.CreateDirectoryIfNotExists(seriesDir); err != nil {
		return &model.IOError{Path: seriesDir, Err: err}
	}

	for _, ch := range plan.Chapters {
		if err := tok.Err(); err != nil {
			return err
		}

		chapterDir := filepath.Join(seriesDir, platform.ChapterDirName(ch.Number))
		if err := platform.CreateDirectoryIfNotExists(chapterDir); err != nil {
			return &model.IOError{Path: chapterDir, Err: err}
		}

		pages := ch.PageCount
		if pages <= 0 {
			pages = pagesPerChapter
		}
		for page := 1; page <= pages; page++ {
			if tok.Poll() == token.SignalCancelled {
				return model.ErrCancelled
			}
			if c.PageDelay > 0 {
				select {
				case <-time.After(c.PageDelay):
				case <-tok.Cancelled():
					return model.ErrCancelled
				}
			}

			path := filepath.Join(chapterDir, platform.PageFileName(page, ".jpg"))
			content := fmt.Sprintf("[Simulated image: Chapter %g, Page %d]", ch.Number, page)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return &model.IOError{Path: path, Err: err}
			}
			sink.Progress(ch.Number, page, pages, pageBytes)
		}
	}
	return nil
}

// slugTitle turns "one-piece" into "One Piece"
func slugTitle(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
