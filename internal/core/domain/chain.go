package domain

// Contract event names decoded from receipts.
const (
	EventMinted = "Minted"
	EventBurned = "Burned"
)

// EventFieldAmount is the decoded token amount in both Minted and Burned.
const EventFieldAmount = "tokenAmount"

// Contract methods the bridge submits.
const (
	MethodMint = "mint"
	MethodBurn = "burn"
)

// PendingTx is a signed transaction. Its hash is known before broadcast.
type PendingTx struct {
	Hash   string
	From   string
	Method string
	Nonce  uint64
	Raw    []byte
}

// ChainLog is a raw log entry carried by a receipt.
type ChainLog struct {
	Address string
	Topics  []string
	Data    []byte
}

// ChainReceipt is the outcome of a mined transaction.
type ChainReceipt struct {
	TxHash      string
	Confirmed   bool
	BlockNumber uint64
	Logs        []ChainLog
}
