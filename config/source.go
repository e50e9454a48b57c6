package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"caixa_scrooper/models"
)

const DefaultSourceID = "caixa"

// SourceConfig holds everything site-specific about a crawl source: seeds,
// link shapes and the pagination heuristics.
type SourceConfig struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	Seeds           []string `yaml:"seeds"`
	PageParam       string   `yaml:"page_param"`
	LinkPattern     string   `yaml:"link_pattern"`
	IDPattern       string   `yaml:"id_pattern"`
	LocationPattern string   `yaml:"location_pattern"`
	ImagePrefix     string   `yaml:"image_prefix"`
	ErrorMarkers    []string `yaml:"error_markers"`
	NextIndicators  []string `yaml:"next_indicators"`
	DefaultStates   []string `yaml:"default_states"`

	MaxPages            int `yaml:"max_pages"`
	MaxConsecutiveEmpty int `yaml:"max_consecutive_empty"`
	MinListHTML         int `yaml:"min_list_html"`
	MinDetailHTML       int `yaml:"min_detail_html"`
	LastPageThreshold   int `yaml:"last_page_threshold"`
	NextLinkCount       int `yaml:"next_link_count"`
	MaxNewPerRun        int `yaml:"max_new_per_run"`
	BatchSize           int `yaml:"batch_size"`

	PageDelayMS     int `yaml:"page_delay_ms"`
	SeedDelayMS     int `yaml:"seed_delay_ms"`
	BatchDelayMS    int `yaml:"batch_delay_ms"`
	ListTimeoutMS   int `yaml:"list_timeout_ms"`
	DetailTimeoutMS int `yaml:"detail_timeout_ms"`
	RenderWaitMS    int `yaml:"render_wait_ms"`
}

// DefaultSource returns the built-in leilaoimovel.com.br Caixa source.
func DefaultSource() *SourceConfig {
	s := &SourceConfig{ID: DefaultSourceID, Name: "Caixa (Leilão Imóvel)"}
	s.WithDefaults()
	return s
}

// WithDefaults fills every zero value.
func (s *SourceConfig) WithDefaults() *SourceConfig {
	if len(s.Seeds) == 0 {
		s.Seeds = []string{
			"https://www.leilaoimovel.com.br/imoveis/caixa",
			"https://www.leilaoimovel.com.br/imoveis/caixa/venda-direta",
		}
	}
	if len(s.DefaultStates) == 0 {
		s.DefaultStates = append([]string(nil), models.NortheastStates...)
	}
	setString(&s.PageParam, "pag")
	setString(&s.LinkPattern, `href="((?:https://www\.leilaoimovel\.com\.br)?/imovel/[^"]+)"`)
	setString(&s.IDPattern, `-(\d{6,})-(\d+)-`)
	setString(&s.LocationPattern, `(?i)em-([^-/]+(?:-[^-/]+)*)-([a-z]{2})/`)
	setString(&s.ImagePrefix, "https://image.leilaoimovel.com.br")
	if len(s.ErrorMarkers) == 0 {
		s.ErrorMarkers = []string{"500-errointernodeservidor", "404-naoencontrado"}
	}
	if len(s.NextIndicators) == 0 {
		s.NextIndicators = []string{"proxima", "próxima"}
	}
	setInt(&s.MaxPages, 15)
	setInt(&s.MaxConsecutiveEmpty, 2)
	setInt(&s.MinListHTML, 1000)
	setInt(&s.MinDetailHTML, 500)
	setInt(&s.LastPageThreshold, 8)
	setInt(&s.NextLinkCount, 12)
	setInt(&s.MaxNewPerRun, 25)
	setInt(&s.BatchSize, 3)
	setInt(&s.PageDelayMS, 500)
	setInt(&s.SeedDelayMS, 500)
	setInt(&s.BatchDelayMS, 500)
	setInt(&s.ListTimeoutMS, 45000)
	setInt(&s.DetailTimeoutMS, 30000)
	setInt(&s.RenderWaitMS, 3000)
	return s
}

func (s *SourceConfig) Validate() error {
	var errs []error
	for name, p := range map[string]string{
		"link_pattern":     s.LinkPattern,
		"id_pattern":       s.IDPattern,
		"location_pattern": s.LocationPattern,
	} {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if s.BatchSize < 1 {
		errs = append(errs, errors.New("batch_size must be positive"))
	}
	return errors.Join(errs...)
}

func (s *SourceConfig) PageDelay() time.Duration  { return ms(s.PageDelayMS) }
func (s *SourceConfig) SeedDelay() time.Duration  { return ms(s.SeedDelayMS) }
func (s *SourceConfig) BatchDelay() time.Duration { return ms(s.BatchDelayMS) }
func (s *SourceConfig) ListTimeout() time.Duration {
	return ms(s.ListTimeoutMS)
}
func (s *SourceConfig) DetailTimeout() time.Duration {
	return ms(s.DetailTimeoutMS)
}
func (s *SourceConfig) RenderWait() time.Duration { return ms(s.RenderWaitMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}
