package models

// Member represents the members table. A row is created exactly once per
// wallet and exactly once per payment transaction; both are enforced as
// database uniqueness constraints so that concurrent duplicate signups
// collapse onto a single row. Members are never updated or deleted.
type Member struct {
	MemberID        string `gorm:"primarykey;column:member_id" json:"memberId"`
	WalletAddress   string `gorm:"column:wallet_address;not null;uniqueIndex:idx_members_wallet_address" json:"walletAddress"`
	PaymentTxHash   string `gorm:"column:payment_tx_hash;not null;uniqueIndex:idx_members_payment_tx_hash" json:"paymentTxHash"`
	PaymentAmount   string `gorm:"column:payment_amount;not null" json:"paymentAmount"`
	PaymentCurrency string `gorm:"column:payment_currency;not null" json:"paymentCurrency"`
	BaseModel
}

// TableName sets the table name for GORM
func (Member) TableName() string {
	return "members"
}
