package cli

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transfer-reconciler/internal/application/service"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

// DefaultLookbackDays is the detection window when -from is not given.
const DefaultLookbackDays = 30

// CommonFlags are shared by every command
type CommonFlags struct {
	ConfigFile string
	Verbose    bool
}

func (c *CommonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", "", "Configuration file path (default: ./config.yaml, then environment)")
	fs.BoolVar(&c.Verbose, "verbose", false, "Verbose output")
}

// DetectFlags are the flags of the detect command
type DetectFlags struct {
	CommonFlags
	From            string
	To              string
	Accounts        string
	Threshold       float64
	DateTolerance   int
	AmountTolerance string
	DryRun          bool
	IncludeLocked   bool

	set map[string]bool
}

// ParseDetectFlags parses detect flags from args (without the program name)
func ParseDetectFlags(args []string) (*DetectFlags, error) {
	flags := &DetectFlags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	flags.register(fs)
	fs.StringVar(&flags.From, "from", "", "Window start, YYYY-MM-DD (default: -to minus 30 days)")
	fs.StringVar(&flags.To, "to", "", "Window end, YYYY-MM-DD (default: today)")
	fs.StringVar(&flags.Accounts, "accounts", "", "Comma-separated account ids (default: all)")
	fs.Float64Var(&flags.Threshold, "threshold", 0, "Auto-link threshold 0-100 (default: from config)")
	fs.IntVar(&flags.DateTolerance, "date-tolerance", 0, "Maximum days between the two sides (default: from config)")
	fs.StringVar(&flags.AmountTolerance, "amount-tolerance", "", "Maximum amount difference, e.g. 0.50 (default: from config)")
	fs.BoolVar(&flags.DryRun, "dry-run", false, "Report what would be linked without writing anything")
	fs.BoolVar(&flags.IncludeLocked, "include-locked", false, "Also consider locked transactions")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { flags.set[f.Name] = true })
	return flags, nil
}

// ToDetectionRequest builds a request from the flags. Flags that were not
// given keep the service's configured defaults.
func (f *DetectFlags) ToDetectionRequest(svc *service.DetectionService, now time.Time) (service.DetectionRequest, error) {
	to := transfer.Day(now)
	if f.To != "" {
		day, err := transfer.ParseDay(f.To)
		if err != nil {
			return service.DetectionRequest{}, fmt.Errorf("invalid -to %q: want YYYY-MM-DD", f.To)
		}
		to = day
	}
	from := to.AddDate(0, 0, -DefaultLookbackDays)
	if f.From != "" {
		day, err := transfer.ParseDay(f.From)
		if err != nil {
			return service.DetectionRequest{}, fmt.Errorf("invalid -from %q: want YYYY-MM-DD", f.From)
		}
		from = day
	}

	req := svc.NewRequest(from, to)
	req.AccountIDs = splitAccounts(f.Accounts)
	req.DryRun = f.DryRun
	req.ExcludeLocked = !f.IncludeLocked
	if f.set["threshold"] {
		req.AutoLinkThreshold = f.Threshold
	}
	if f.set["date-tolerance"] {
		req.DateToleranceDays = f.DateTolerance
	}
	if f.set["amount-tolerance"] {
		amount, err := decimal.NewFromString(f.AmountTolerance)
		if err != nil {
			return service.DetectionRequest{}, fmt.Errorf("invalid -amount-tolerance %q", f.AmountTolerance)
		}
		req.AmountTolerance = amount
	}
	return req, nil
}

// MatchFlags are the flags of the match-pending command
type MatchFlags struct {
	CommonFlags
}

// ParseMatchFlags parses match-pending flags from args
func ParseMatchFlags(args []string) (*MatchFlags, error) {
	flags := &MatchFlags{}
	fs := flag.NewFlagSet("match-pending", flag.ContinueOnError)
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	CommonFlags
	Port int // 0 = from config
}

// ParseServeFlags parses command line flags for the serve command.
func ParseServeFlags(args []string) (*ServeFlags, error) {
	flags := &ServeFlags{}
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	flags.register(fs)
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on (default: from config)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

func splitAccounts(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
