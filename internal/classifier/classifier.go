package classifier

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Exclusion reasons reported in Decision.Reason.
const (
	ReasonLaunchPoolSource = "launch_pool_source"
	ReasonDeniedAccount    = "denied_account"
	ReasonNoDexProgram     = "no_dex_program"
)

const (
	PumpFunProgram   = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	PumpAMMProgram   = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	MeteoraDLMM      = "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"
	JupiterV6Program = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	SourcePumpFun    = "PUMP_FUN"
	TypeTransfer     = "TRANSFER"
)

// Rules configure which transactions are excluded before extraction.
type Rules struct {
	LaunchPoolSources  []string `mapstructure:"launch_pool_sources"`
	TransferTypes      []string `mapstructure:"transfer_types"`
	DeniedAccounts     []string `mapstructure:"denied_accounts"`
	RequiredPrograms   []string `mapstructure:"required_programs"`
	RequireAllPrograms bool     `mapstructure:"require_all_programs"`
}

// DefaultRules returns the stock exclusion sets.
func DefaultRules() Rules {
	return Rules{
		LaunchPoolSources: []string{SourcePumpFun},
		TransferTypes:     []string{TypeTransfer},
		DeniedAccounts:    []string{PumpFunProgram},
		RequiredPrograms:  []string{PumpAMMProgram, MeteoraDLMM, JupiterV6Program},
	}
}

// Validate checks that every account in the rules is a valid base58 public key.
func (r Rules) Validate() error {
	var errs []error
	for _, addr := range r.DeniedAccounts {
		if _, err := solana.PublicKeyFromBase58(addr); err != nil {
			errs = append(errs, fmt.Errorf("denied account %q: %w", addr, err))
		}
	}
	for _, addr := range r.RequiredPrograms {
		if _, err := solana.PublicKeyFromBase58(addr); err != nil {
			errs = append(errs, fmt.Errorf("required program %q: %w", addr, err))
		}
	}
	return errors.Join(errs...)
}

// Meta is the subset of a transaction the classifier looks at.
type Meta struct {
	Source   string
	Type     string
	Accounts []string
}

// Decision is the classifier verdict.
type Decision struct {
	Include bool
	Reason  string
}

// Classifier applies Rules. It is safe for concurrent use.
type Classifier struct {
	launchPools map[string]struct{}
	transfers   map[string]struct{}
	denied      map[string]struct{}
	required    map[string]struct{}
	requireAll  bool
}

// New builds a Classifier from rules.
func New(rules Rules) *Classifier {
	return &Classifier{
		launchPools: toSet(rules.LaunchPoolSources),
		transfers:   toSet(rules.TransferTypes),
		denied:      toSet(rules.DeniedAccounts),
		required:    toSet(rules.RequiredPrograms),
		requireAll:  rules.RequireAllPrograms,
	}
}

// Classify decides whether a transaction proceeds to extraction.
func (c *Classifier) Classify(meta Meta) Decision {
	if _, ok := c.launchPools[meta.Source]; ok {
		return Decision{Reason: ReasonLaunchPoolSource}
	}

	if _, ok := c.transfers[meta.Type]; !ok {
		return Decision{Include: true}
	}

	touched := make(map[string]struct{}, len(meta.Accounts))
	for _, acc := range meta.Accounts {
		if _, ok := c.denied[acc]; ok {
			return Decision{Reason: ReasonDeniedAccount}
		}
		if _, ok := c.required[acc]; ok {
			touched[acc] = struct{}{}
		}
	}

	if len(c.required) == 0 {
		return Decision{Include: true}
	}
	if c.requireAll && len(touched) < len(c.required) {
		return Decision{Reason: ReasonNoDexProgram}
	}
	if len(touched) == 0 {
		return Decision{Reason: ReasonNoDexProgram}
	}
	return Decision{Include: true}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}
