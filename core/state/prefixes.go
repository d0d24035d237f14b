package state

var (
	portalAccountPrefix = []byte("portal/account/")
	portalStateKeyBytes = []byte("portal/state")
)

func portalAccountKey(owner []byte) []byte {
	key := make([]byte, 0, len(portalAccountPrefix)+len(owner))
	key = append(key, portalAccountPrefix...)
	return append(key, owner...)
}
