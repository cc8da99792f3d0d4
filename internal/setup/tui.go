// Package setup is the interactive wizard that writes a venue config file.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/venuekit/config"
	"github.com/vadiminshakov/venuekit/pkg/decimal"
	"github.com/vadiminshakov/venuekit/pkg/precision"
	"github.com/vadiminshakov/venuekit/pkg/throttle"
)

// DefaultFilename is where the wizard saves its result.
const DefaultFilename = "venues.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers holds what the operator entered.
type Answers struct {
	Venue         string
	Testnet       bool
	PrecisionMode string
	PaddingMode   string
	Symbols       string
	Algorithm     string
	Every         string
	Capacity      string
	Window        string
	MaxWeight     string
	QueueDepth    string
	Listen        string
	RedisAddr     string
}

// DefaultAnswers returns the values the wizard starts from.
func DefaultAnswers() Answers {
	return Answers{
		Venue:         "binance",
		PrecisionMode: "tick",
		PaddingMode:   "none",
		Algorithm:     throttle.LeakyBucket.String(),
		Every:         "50ms",
		Capacity:      "1",
		Window:        "1m",
		QueueDepth:    "2000",
		Listen:        ":8080",
	}
}

// Settings converts the answers into the YAML config shape.
func (a Answers) Settings() (config.SettingsTmp, error) {
	every, err := time.ParseDuration(a.Every)
	if err != nil {
		return config.SettingsTmp{}, errors.Wrap(err, "interval between requests")
	}
	var window time.Duration
	if a.Algorithm == throttle.RollingWindow.String() {
		if window, err = time.ParseDuration(a.Window); err != nil {
			return config.SettingsTmp{}, errors.Wrap(err, "window")
		}
	}
	depth := 0
	if a.QueueDepth != "" {
		if _, err := fmt.Sscan(a.QueueDepth, &depth); err != nil {
			return config.SettingsTmp{}, errors.Wrap(err, "queue depth")
		}
	}

	v := config.ConfigTmp{
		Venue:     a.Venue,
		Testnet:   a.Testnet,
		Precision: a.PrecisionMode,
		Padding:   a.PaddingMode,
		RateLimit: config.RateLimitTmp{
			Algorithm:     a.Algorithm,
			Every:         every,
			MaxQueueDepth: depth,
		},
	}
	if a.Algorithm == throttle.RollingWindow.String() {
		v.RateLimit.Window = window
		v.RateLimit.MaxWeight = a.MaxWeight
	} else {
		v.RateLimit.Capacity = a.Capacity
	}
	for _, s := range strings.Split(a.Symbols, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			v.Symbols = append(v.Symbols, s)
		}
	}

	return config.SettingsTmp{
		Listen:    a.Listen,
		RedisAddr: a.RedisAddr,
		Venues:    []config.ConfigTmp{v},
	}, nil
}

// Write validates the answers through the config parser and saves them.
func Write(path string, a Answers) error {
	tmp, err := a.Settings()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if _, err := config.Parse(data); err != nil {
		return errors.Wrap(err, "generated config is invalid")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("VENUEKIT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes path.
func RunTUI(path string) error {
	a := DefaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("VENUEKIT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Describe a venue connection.\n"))

	fmt.Println(stepStyle.Render("STEP 1: VENUE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select venue").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
				).
				Value(&a.Venue),
			huh.NewConfirm().
				Title("Use testnet?").
				Value(&a.Testnet),
			huh.NewInput().
				Title("Symbols").
				Description("Comma separated venue symbols, empty loads every market").
				Value(&a.Symbols),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: PRECISION")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How does the venue declare precision?").
				Options(
					huh.NewOption("Tick size (0.01)", precision.TickSize.String()),
					huh.NewOption("Decimal places (2)", precision.DecimalPlaces.String()),
					huh.NewOption("Significant digits (5)", precision.SignificantDigits.String()),
				).
				Value(&a.PrecisionMode),
			huh.NewSelect[string]().
				Title("Padding").
				Options(
					huh.NewOption("No padding", precision.NoPadding.String()),
					huh.NewOption("Pad with zeros", precision.PadWithZero.String()),
				).
				Value(&a.PaddingMode),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 3: RATE LIMIT")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Limiter algorithm").
				Options(
					huh.NewOption("Leaky bucket", throttle.LeakyBucket.String()),
					huh.NewOption("Rolling window", throttle.RollingWindow.String()),
				).
				Value(&a.Algorithm),
			huh.NewInput().
				Title("Interval between requests").
				Description("Duration per request of cost one (e.g. 50ms)").
				Value(&a.Every).
				Validate(validateDuration),
			huh.NewInput().
				Title("Max queue depth").
				Value(&a.QueueDepth),
		),
	).Run()
	if err != nil {
		return err
	}

	if a.Algorithm == throttle.RollingWindow.String() {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Window").
					Value(&a.Window).
					Validate(validateDuration),
				huh.NewInput().
					Title("Max weight per window").
					Description("Empty derives it from the interval").
					Value(&a.MaxWeight).
					Validate(validateOptionalPositive),
			),
		).Run()
	} else {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Bucket capacity").
					Value(&a.Capacity).
					Validate(validateOptionalPositive),
			),
		).Run()
	}
	if err != nil {
		return err
	}

	screen("STEP 4: STATUS SERVER")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Value(&a.Listen),
			huh.NewInput().
				Title("Redis address").
				Description("Empty keeps admission stats in memory").
				Value(&a.RedisAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Venue: %s\nPrecision: %s / %s\nLimiter: %s every %s\nListen: %s\n",
		a.Venue, a.PrecisionMode, a.PaddingMode, a.Algorithm, a.Every, a.Listen,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	if err := Write(path, a); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func validateOptionalPositive(s string) error {
	if s == "" {
		return nil
	}
	d, err := decimal.Parse(s)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if d.Sign() <= 0 {
		return errors.New("must be positive")
	}
	return nil
}
