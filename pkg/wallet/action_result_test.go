package wallet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trustrail/trustrail/pkg/wallet"
)

func TestActionResult_Merge(t *testing.T) {
	merged := wallet.ActionResultSoftMatch.Merge(wallet.ActionResultSentAdditionalKYCData)
	assert.Equal(t, wallet.ActionResult("soft_match, sent_additional_kyc_data"), merged)

	// A trailing send acknowledgement adds nothing.
	assert.Equal(t, wallet.ActionResultPass,
		wallet.ActionResultPass.Merge(wallet.ActionResultSendRequestSuccess))
}
