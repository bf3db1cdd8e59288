package deposit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"},
		{"a\x00b", "a�b"},
		{"5\x00\xff\xfe", "5��"},
		{"\xc3", "�"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeText(tt.in), "%q", tt.in)
	}

	d := New("sepolia", "0xaa", "0x01", 1, big.NewInt(1), "x\x00")
	assert.Equal(t, "x�", d.DestinationAddress)
}

func TestRecordedFees(t *testing.T) {
	d := &Deposit{Amount: "1000", NetworkFeeAmount: "100", BusinessFeeAmount: "22"}
	fees, ok := d.RecordedFees()
	require.True(t, ok)
	assert.Equal(t, "900", fees.AmountToTransfer.String())
	assert.Equal(t, "878", fees.Payout.String())

	want, err := SplitFees(big.NewInt(1000), big.NewInt(100), Percentage(250))
	require.NoError(t, err)
	assert.Equal(t, want.BusinessFee.String(), fees.BusinessFee.String())
	assert.Equal(t, want.Payout.String(), fees.Payout.String())

	for _, bad := range []*Deposit{
		{Amount: "1000"},
		{Amount: "1000", NetworkFeeAmount: "0"},
		{Amount: "oops", NetworkFeeAmount: "0", BusinessFeeAmount: "0"},
		{Amount: "10", NetworkFeeAmount: "8", BusinessFeeAmount: "3"},
	} {
		_, ok := bad.RecordedFees()
		assert.False(t, ok, "%+v", bad)
	}
}

func TestDepositResponse_FeesOnlyWhenProcessed(t *testing.T) {
	d := &Deposit{
		State:                 StateProcessing,
		NetworkFeeAmount:      "0",
		BusinessFeeAmount:     "20",
		BusinessFeePercentage: "2",
	}
	r := d.Response()
	assert.Empty(t, r.BusinessFeeAmount)
	assert.Empty(t, r.BusinessFeePercentage)
	assert.Empty(t, r.NetworkFeeAmount)

	d.State = StateProcessed
	d.DestinationTxHash = "0xdest"
	r = d.Response()
	assert.Equal(t, "20", r.BusinessFeeAmount)
	assert.Equal(t, "2", r.BusinessFeePercentage)
	assert.Equal(t, "0", r.NetworkFeeAmount)
	assert.Equal(t, "0xdest", r.DestinationTxHash)
}
