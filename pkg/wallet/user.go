package wallet

import (
	"bytes"

	"github.com/trustrail/trustrail/pkg/protocol"
)

// User is a local end-user identity. Subaddresses bind conversations to
// this user: each payment or consent the user takes part in mints one.
type User struct {
	Name         string
	Subaddresses [][]byte
}

// KYCData is the identity material this party declares about the user.
func (u *User) KYCData() *protocol.KYCDataObject {
	return protocol.NewIndividualKYCData(u.Name, "surname-"+u.Name, &protocol.AddressObject{City: "San Francisco"})
}

// AdditionalKYCData is the secondary verification string sent to clear
// a soft match.
func (u *User) AdditionalKYCData() string {
	return u.Name + "'s secret"
}

func (u *User) ownsSubaddress(subaddress []byte) bool {
	for _, s := range u.Subaddresses {
		if bytes.Equal(s, subaddress) {
			return true
		}
	}
	return false
}
