// Package describe prints what the dataset knows about individual features
// and, when asked, gets the advisor's opinion on the weakly supported ones.
package describe

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/Abhishekkr206/WebBaseline/baseline"
	"github.com/Abhishekkr206/WebBaseline/compat"
	"github.com/Abhishekkr206/WebBaseline/state"
	"github.com/Abhishekkr206/WebBaseline/suggest"
)

var tierPaint = map[baseline.Tier][]color.Attribute{
	baseline.TierLimited: {color.FgRed, color.Bold},
	baseline.TierNewly:   {color.FgYellow},
	baseline.TierWidely:  {color.FgGreen},
}

// Run is "describe" command body.
func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("describe")

	if cmd.Args().Len() == 0 {
		return fmt.Errorf("nothing to describe, give feature keys or ids")
	}

	ds, err := env.Dataset()
	if err != nil {
		return err
	}

	var adv *advisor
	if cmd.Bool("suggest") || env.Cfg.Suggest.Enable {
		adv = newAdvisor(env, log)
	}

	colored := env.Cfg.Output.Color.Enabled(os.Stdout)
	for i, arg := range cmd.Args().Slice() {
		if i > 0 {
			fmt.Fprintln(os.Stdout)
		}
		f, ok := ds.Lookup(arg)
		if !ok {
			log.Debug("Unknown feature requested", zap.String("key", arg))
			printUnknown(os.Stdout, arg, colored)
			continue
		}
		printFeature(os.Stdout, f, colored)
		if adv != nil {
			adv.advise(ctx, os.Stdout, arg, f)
		}
	}
	return nil
}

// printFeature renders one dataset entry the way "describe" shows it.
func printFeature(w io.Writer, f *compat.Feature, colored bool) {
	paint := func(s string, attrs ...color.Attribute) string {
		if !colored {
			return s
		}
		return color.New(attrs...).Sprint(s)
	}

	tier := baseline.Classify(f.Status)

	header := f.ID
	if len(f.Name) > 0 && f.Name != f.ID {
		header += " (" + f.Name + ")"
	}
	fmt.Fprintln(w, paint(header, color.Underline))

	status := tierLabel(tier)
	if f.Status != nil && len(f.Status.BaselineLowDate) > 0 {
		status += ", since " + f.Status.BaselineLowDate
	}
	fmt.Fprintf(w, "  baseline:  %s\n", paint(status, tierPaint[tier]...))

	if len(f.Keys) > 0 {
		fmt.Fprintf(w, "  keys:      %s\n", strings.Join(f.Keys, ", "))
	}
	if browsers := supportLine(f.Status); len(browsers) > 0 {
		fmt.Fprintf(w, "  browsers:  %s\n", browsers)
	}
	if missing := baseline.Missing(f.Status); len(missing) > 0 {
		fmt.Fprintf(w, "  missing:   %s\n", strings.Join(missing, ", "))
	}
}

// printUnknown renders the absence answer: a key the dataset does not have
// counts as limited availability.
func printUnknown(w io.Writer, key string, colored bool) {
	paint := func(s string, attrs ...color.Attribute) string {
		if !colored {
			return s
		}
		return color.New(attrs...).Sprint(s)
	}
	fmt.Fprintln(w, paint(key, color.Underline))
	fmt.Fprintf(w, "  baseline:  %s\n",
		paint(tierLabel(baseline.TierLimited)+", not in the dataset", tierPaint[baseline.TierLimited]...))
}

func tierLabel(t baseline.Tier) string {
	switch t {
	case baseline.TierWidely:
		return "widely available"
	case baseline.TierNewly:
		return "newly available"
	default:
		return "limited availability"
	}
}

// supportLine lists known browser versions, core browsers first, anything
// else after them in name order.
func supportLine(st *baseline.SupportStatus) string {
	if st == nil || len(st.Support) == 0 {
		return ""
	}

	var parts []string
	listed := make(map[string]bool)
	for _, b := range baseline.CoreBrowsers {
		if s, ok := st.Support[b]; ok {
			parts = append(parts, b+" "+s.Version)
			listed[b] = true
		}
	}

	var rest []string
	for b := range st.Support {
		if !listed[b] {
			rest = append(rest, b)
		}
	}
	sort.Strings(rest)
	for _, b := range rest {
		parts = append(parts, b+" "+st.Support[b].Version)
	}
	return strings.Join(parts, ", ")
}

// advisor holds one advice conversation across all described features, so
// later answers can refer to earlier ones.
type advisor struct {
	client *suggest.Client
	sess   *suggest.Session
	log    *zap.Logger
}

func newAdvisor(env *state.LocalEnv, log *zap.Logger) *advisor {
	sc := env.Cfg.Suggest
	if len(sc.APIKey) == 0 {
		log.Warn("Advisor enabled without an api key, calls will likely be rejected")
	}
	return &advisor{
		client: suggest.NewClient(suggest.Config{
			Endpoint:   sc.Endpoint,
			Model:      sc.Model,
			APIKey:     string(sc.APIKey),
			Timeout:    sc.Timeout(),
			MaxRetries: sc.MaxRetries,
		}, env.Log),
		sess: suggest.NewSession(),
		log:  log,
	}
}

// advise asks for remediation advice on a feature that is not widely
// available yet. Advisor trouble is logged, never fatal: the description
// above it already answered the actual question.
func (a *advisor) advise(ctx context.Context, w io.Writer, key string, f *compat.Feature) {
	tier := baseline.Classify(f.Status)
	if tier == baseline.TierWidely {
		return
	}

	answer, err := a.client.Advise(ctx, a.sess, suggest.Request{
		Feature: f.Name,
		Key:     key,
		Tier:    tier,
		Missing: baseline.Missing(f.Status),
	})
	if err != nil {
		a.log.Warn("Advisor call failed", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "  advice:\n%s\n", indent(answer, "    "))
}

// indent prefixes every line of s.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if len(line) > 0 {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
