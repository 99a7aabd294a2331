package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Keymap binds key strings (as produced by the view, e.g. "G", "shift+tab",
// "ctrl+c") to command names.
type Keymap struct {
	View   map[string]string `toml:"view"`
	Prompt map[string]string `toml:"prompt"`
}

type Decompiler struct {
	Command   string   `toml:"command"`
	Args      []string `toml:"args"`
	Program   string   `toml:"program"`
	TimeoutMS int      `toml:"timeout-ms"`
}

// Timeout is the per-request deadline; zero means none.
func (d Decompiler) Timeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

type Database struct {
	Path string `toml:"path"`
}

type ViewOptions struct {
	TabWidth      int    `toml:"tab-width"`
	LineNumbers   string `toml:"line-numbers"`
	TitleFormat   string `toml:"title-format"`
	DoubleClickMS int    `toml:"double-click-ms"`
}

func (v ViewOptions) DoubleClick() time.Duration {
	return time.Duration(v.DoubleClickMS) * time.Millisecond
}

type Theme struct {
	Theme                      string `toml:"theme"`
	Foreground                 string `toml:"foreground"`
	Background                 string `toml:"background"`
	StatuslineForeground       string `toml:"statusline-foreground"`
	StatuslineBackground       string `toml:"statusline-background"`
	CommandlineForeground      string `toml:"commandline-foreground"`
	CommandlineBackground      string `toml:"commandline-background"`
	LineNumberForeground       string `toml:"line-number-foreground"`
	LineNumberActiveForeground string `toml:"line-number-active-foreground"`
	WordForeground             string `toml:"word-foreground"`
	WordBackground             string `toml:"word-background"`
	SyntaxKeyword              string `toml:"syntax-keyword"`
	SyntaxString               string `toml:"syntax-string"`
	SyntaxComment              string `toml:"syntax-comment"`
	SyntaxType                 string `toml:"syntax-type"`
	SyntaxFunction             string `toml:"syntax-function"`
	SyntaxNumber               string `toml:"syntax-number"`
	SyntaxConstant             string `toml:"syntax-constant"`
	SyntaxOperator             string `toml:"syntax-operator"`
	SyntaxPunctuation          string `toml:"syntax-punctuation"`
	SyntaxField                string `toml:"syntax-field"`
	SyntaxVariable             string `toml:"syntax-variable"`
}

type Config struct {
	Decompiler Decompiler  `toml:"decompiler"`
	Database   Database    `toml:"database"`
	View       ViewOptions `toml:"view"`
	Theme      Theme       `toml:"theme"`
	Keymap     Keymap      `toml:"keymap"`
}

func Default() Config {
	return Config{
		Decompiler: Decompiler{
			Command:   "qdecomp-ghidra",
			TimeoutMS: 30000,
		},
		Database: Database{
			Path: "qdecomp.db",
		},
		View: ViewOptions{
			TabWidth:      4,
			LineNumbers:   "absolute",
			TitleFormat:   "Ghidra code",
			DoubleClickMS: 400,
		},
		Theme: Theme{
			Theme:                      "",
			Foreground:                 "#B3B1AD",
			Background:                 "#0A0E14",
			StatuslineForeground:       "#B3B1AD",
			StatuslineBackground:       "#0F1419",
			CommandlineForeground:      "#B3B1AD",
			CommandlineBackground:      "#0F1419",
			LineNumberForeground:       "#3E4B59",
			LineNumberActiveForeground: "#B3B1AD",
			WordForeground:             "#0A0E14",
			WordBackground:             "#E6B450",
			SyntaxKeyword:              "#FFA759",
			SyntaxString:               "#BAE67E",
			SyntaxComment:              "#5C6773",
			SyntaxType:                 "#5CCFE6",
			SyntaxFunction:             "#FFD173",
			SyntaxNumber:               "#D4BFFF",
			SyntaxConstant:             "#FFDD8E",
			SyntaxOperator:             "#F29668",
			SyntaxPunctuation:          "#C0C0C0",
			SyntaxField:                "#E6B673",
			SyntaxVariable:             "#B3B1AD",
		},
		Keymap: Keymap{
			View: map[string]string{
				"G":         "jump",
				"N":         "rename",
				"Y":         "set_type",
				"/":         "comment",
				"esc":       "back",
				"enter":     "navigate",
				"f3":        "open",
				"tab":       "next_view",
				"shift+tab": "prev_view",
				"ctrl+c":    "quit",

				"h":     "move_left",
				"j":     "move_down",
				"k":     "move_up",
				"l":     "move_right",
				"left":  "move_left",
				"down":  "move_down",
				"up":    "move_up",
				"right": "move_right",
				"home":  "line_start",
				"end":   "line_end",
				"w":     "word_forward",
				"b":     "word_backward",
				"g":     "file_start",
				"pgup":  "page_up",
				"pgdn":  "page_down",
			},
			Prompt: map[string]string{
				"esc":       "cancel",
				"ctrl+c":    "cancel",
				"enter":     "accept",
				"backspace": "backspace",
				"left":      "move_left",
				"right":     "move_right",
				"home":      "line_start",
				"end":       "line_end",
				"tab":       "complete",
			},
		},
	}
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), err
	}
	return LoadFile(path)
}

// LoadFile merges the config file at path over the defaults. A missing file
// yields the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	var userCfg Config
	if _, err := toml.Decode(string(data), &userCfg); err != nil {
		return cfg, err
	}

	if userCfg.Decompiler.Command != "" {
		cfg.Decompiler.Command = userCfg.Decompiler.Command
	}
	if userCfg.Decompiler.Args != nil {
		cfg.Decompiler.Args = userCfg.Decompiler.Args
	}
	if userCfg.Decompiler.Program != "" {
		cfg.Decompiler.Program = userCfg.Decompiler.Program
	}
	if userCfg.Decompiler.TimeoutMS > 0 {
		cfg.Decompiler.TimeoutMS = userCfg.Decompiler.TimeoutMS
	}
	if userCfg.Database.Path != "" {
		cfg.Database.Path = userCfg.Database.Path
	}
	if userCfg.View.TabWidth > 0 {
		cfg.View.TabWidth = userCfg.View.TabWidth
	}
	if userCfg.View.LineNumbers != "" {
		cfg.View.LineNumbers = userCfg.View.LineNumbers
	}
	if userCfg.View.TitleFormat != "" {
		cfg.View.TitleFormat = userCfg.View.TitleFormat
	}
	if userCfg.View.DoubleClickMS > 0 {
		cfg.View.DoubleClickMS = userCfg.View.DoubleClickMS
	}
	if userCfg.Theme.Theme != "" {
		cfg.Theme.Theme = userCfg.Theme.Theme
	}
	if cfg.Theme.Theme != "" {
		theme, err := LoadTheme(cfg.Theme.Theme)
		if err != nil {
			return cfg, err
		}
		mergeTheme(&cfg.Theme, theme)
	}
	mergeTheme(&cfg.Theme, userCfg.Theme)
	for k, v := range userCfg.Keymap.View {
		cfg.Keymap.View[k] = v
	}
	for k, v := range userCfg.Keymap.Prompt {
		cfg.Keymap.Prompt[k] = v
	}

	return cfg, nil
}

func mergeTheme(dst *Theme, src Theme) {
	set := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	set(&dst.Foreground, src.Foreground)
	set(&dst.Background, src.Background)
	set(&dst.StatuslineForeground, src.StatuslineForeground)
	set(&dst.StatuslineBackground, src.StatuslineBackground)
	set(&dst.CommandlineForeground, src.CommandlineForeground)
	set(&dst.CommandlineBackground, src.CommandlineBackground)
	set(&dst.LineNumberForeground, src.LineNumberForeground)
	set(&dst.LineNumberActiveForeground, src.LineNumberActiveForeground)
	set(&dst.WordForeground, src.WordForeground)
	set(&dst.WordBackground, src.WordBackground)
	set(&dst.SyntaxKeyword, src.SyntaxKeyword)
	set(&dst.SyntaxString, src.SyntaxString)
	set(&dst.SyntaxComment, src.SyntaxComment)
	set(&dst.SyntaxType, src.SyntaxType)
	set(&dst.SyntaxFunction, src.SyntaxFunction)
	set(&dst.SyntaxNumber, src.SyntaxNumber)
	set(&dst.SyntaxConstant, src.SyntaxConstant)
	set(&dst.SyntaxOperator, src.SyntaxOperator)
	set(&dst.SyntaxPunctuation, src.SyntaxPunctuation)
	set(&dst.SyntaxField, src.SyntaxField)
	set(&dst.SyntaxVariable, src.SyntaxVariable)
}

func ThemePath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "theme", name+".toml"), nil
}

func LoadTheme(name string) (Theme, error) {
	path, err := ThemePath(name)
	if err != nil {
		return Theme{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, err
	}
	var t Theme
	if _, err := toml.Decode(string(data), &t); err == nil {
		return t, nil
	}
	var wrap struct {
		Theme Theme `toml:"theme"`
	}
	if _, err := toml.Decode(string(data), &wrap); err != nil {
		return Theme{}, err
	}
	return wrap.Theme, nil
}

func ConfigDir() (string, error) {
	if v := os.Getenv("QDECOMP_CONFIG_HOME"); v != "" {
		return filepath.Join(v), nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "qdecomp"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "qdecomp"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
