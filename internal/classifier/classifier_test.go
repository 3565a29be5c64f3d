package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	c := New(DefaultRules())

	tests := []struct {
		name   string
		meta   Meta
		want   bool
		reason string
	}{
		{
			name:   "launch pool source",
			meta:   Meta{Source: "PUMP_FUN", Type: "SWAP"},
			reason: ReasonLaunchPoolSource,
		},
		{
			name: "plain swap",
			meta: Meta{Source: "JUPITER", Type: "SWAP", Accounts: []string{"WalletA"}},
			want: true,
		},
		{
			name:   "transfer touching denied account",
			meta:   Meta{Source: "SYSTEM_PROGRAM", Type: "TRANSFER", Accounts: []string{JupiterV6Program, PumpFunProgram}},
			reason: ReasonDeniedAccount,
		},
		{
			name:   "transfer without dex program",
			meta:   Meta{Source: "SYSTEM_PROGRAM", Type: "TRANSFER", Accounts: []string{"WalletA", "WalletB"}},
			reason: ReasonNoDexProgram,
		},
		{
			name: "transfer through one dex program",
			meta: Meta{Source: "UNKNOWN", Type: "TRANSFER", Accounts: []string{"WalletA", MeteoraDLMM}},
			want: true,
		},
		{
			name:   "case sensitive source",
			meta:   Meta{Source: "pump_fun", Type: "TRANSFER", Accounts: []string{"WalletA"}},
			reason: ReasonNoDexProgram,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.meta)
			assert.Equal(t, tt.want, got.Include)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestClassifyRequireAllPrograms(t *testing.T) {
	rules := DefaultRules()
	rules.RequireAllPrograms = true
	c := New(rules)

	partial := Meta{Type: "TRANSFER", Accounts: []string{JupiterV6Program, MeteoraDLMM}}
	assert.Equal(t, Decision{Reason: ReasonNoDexProgram}, c.Classify(partial))

	full := Meta{Type: "TRANSFER", Accounts: []string{JupiterV6Program, MeteoraDLMM, PumpAMMProgram}}
	assert.Equal(t, Decision{Include: true}, c.Classify(full))
}

func TestClassifyEmptyRulesIncludesEverything(t *testing.T) {
	c := New(Rules{})
	assert.True(t, c.Classify(Meta{Source: "PUMP_FUN", Type: "TRANSFER"}).Include)
}

func TestRulesValidate(t *testing.T) {
	require.NoError(t, DefaultRules().Validate())

	rules := DefaultRules()
	rules.DeniedAccounts = append(rules.DeniedAccounts, "not-base58-0OIl")
	err := rules.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied account")
}
