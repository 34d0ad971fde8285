package payment

import (
	"strconv"
	"strings"
)

// Processor contract entry points.
const (
	ModuleName                = "payment_processor"
	FunctionProcessPayment    = "process_widget_payment"
	FunctionWithdrawAdminFees = "withdraw_admin_fees"
)

// MoveCall is a fully encoded contract invocation, ready to build.
type MoveCall struct {
	PackageID string
	Module    string
	Function  string
	Arguments []interface{}
}

// Target renders package::module::function.
func (c MoveCall) Target() string {
	return c.PackageID + "::" + c.Module + "::" + c.Function
}

// ByteVector is a Move vector<u8>. It serializes as an array of numbers,
// which is the form the node expects for pure byte-vector arguments.
type ByteVector []byte

func (b ByteVector) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.Grow(2 + len(b)*4)
	sb.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	sb.WriteByte(']')
	return []byte(sb.String()), nil
}

// Encoder builds processor calls. It is pure and never fails.
type Encoder struct {
	packageID string
}

func NewEncoder(packageID string) *Encoder {
	return &Encoder{packageID: packageID}
}

// EncodePayment lays out process_widget_payment arguments in contract order:
// processor, merchant address, merchant id bytes, product id bytes, coin.
func (e *Encoder) EncodePayment(processor, merchantAddress, merchantID, productID, fundingUnitID string) MoveCall {
	return MoveCall{
		PackageID: e.packageID,
		Module:    ModuleName,
		Function:  FunctionProcessPayment,
		Arguments: []interface{}{
			processor,
			merchantAddress,
			ByteVector(merchantID),
			ByteVector(productID),
			fundingUnitID,
		},
	}
}

// EncodeWithdraw builds withdraw_admin_fees(processor).
func (e *Encoder) EncodeWithdraw(processor string) MoveCall {
	return MoveCall{
		PackageID: e.packageID,
		Module:    ModuleName,
		Function:  FunctionWithdrawAdminFees,
		Arguments: []interface{}{processor},
	}
}
