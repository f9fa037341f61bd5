package domain

// Operator is a back-office user allowed to act on settlement records.
type Operator struct {
	Username     string
	PasswordHash string // argon2id encoded
}
