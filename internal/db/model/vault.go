package model

const (
	VaultCollection = "vault"
	// VaultDocumentID keys the singleton vault document
	VaultDocumentID = "vault"
)

type VaultDocument struct {
	ID             string `bson:"_id"`
	Authority      string `bson:"authority"`
	TotalStaked    uint64 `bson:"total_staked"`
	CustodyBalance uint64 `bson:"custody_balance"`
	ApyRateBps     uint64 `bson:"apy_rate_bps"`
	Paused         bool   `bson:"paused"`
	CreatedAt      int64  `bson:"created_at"`
	UpdatedAt      int64  `bson:"updated_at"`
}

func NewVaultDocument(authority string, apyRateBps uint64, now int64) *VaultDocument {
	return &VaultDocument{
		ID:         VaultDocumentID,
		Authority:  authority,
		ApyRateBps: apyRateBps,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Surplus returns the custody amount not backing active principal, i.e.
// what the authority may withdraw without touching stakers' funds.
func (v *VaultDocument) Surplus() uint64 {
	if v.CustodyBalance <= v.TotalStaked {
		return 0
	}
	return v.CustodyBalance - v.TotalStaked
}
