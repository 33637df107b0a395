package orders

import "strconv"

const (
	TopicOrderPlaced = "pharmacy.order.placed"
	TopicStockLow    = "pharmacy.stock.low"
)

// Partition key = order id, so every event of one order keeps its order.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
