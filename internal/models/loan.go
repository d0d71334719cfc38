package models

// BankLender is the Loan.From value for loans issued by the house.
const BankLender = "bank"

type InterestType string

const (
	InterestOverall  InterestType = "overall"
	InterestPerRound InterestType = "per_round"
	InterestGift     InterestType = "gift"
)

// Valid reports whether t is one of the known interest types.
func (t InterestType) Valid() bool {
	switch t {
	case InterestOverall, InterestPerRound, InterestGift:
		return true
	}
	return false
}

// Loan is a materialized debt held by a borrower. TotalOwed is the current amount due;
// once IsPaid is set it stays at zero.
type Loan struct {
	ID             string       `json:"id"`
	From           string       `json:"from"`
	Amount         int64        `json:"amount"`
	InterestType   InterestType `json:"interestType"`
	InterestAmount int64        `json:"interestAmount"`
	TotalOwed      int64        `json:"totalOwed"`
	IsPaid         bool         `json:"isPaid"`
}

// IsBank reports whether the loan was issued by the house.
func (l Loan) IsBank() bool {
	return l.From == BankLender
}

// InitialOwed is the amount due when a loan is first issued: principal plus flat interest for
// "overall" loans, principal only for "per_round" loans, nothing for gifts.
func InitialOwed(t InterestType, amount, interest int64) int64 {
	switch t {
	case InterestOverall:
		return amount + interest
	case InterestGift:
		return 0
	default:
		return amount
	}
}

type LoanRequestStatus string

const (
	LoanPending  LoanRequestStatus = "pending"
	LoanApproved LoanRequestStatus = "approved"
	LoanRejected LoanRequestStatus = "rejected"
)

// LoanRequest is a player-to-player loan awaiting the lender's decision. No money moves until approval.
type LoanRequest struct {
	ID             string            `json:"id"`
	FromPlayerID   string            `json:"fromPlayerId"` // lender
	ToPlayerID     string            `json:"toPlayerId"`   // borrower
	Amount         int64             `json:"amount"`
	InterestType   InterestType      `json:"interestType"`
	InterestAmount int64             `json:"interestAmount"`
	TotalOwed      int64             `json:"totalOwed"`
	Status         LoanRequestStatus `json:"status"`
	Timestamp      int64             `json:"timestamp"`
}
