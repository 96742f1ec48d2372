package provider

import "sync"

// PQProviderName is the name the post-quantum provider is registered under.
const PQProviderName = "oqsprovider"

// TLS NamedGroup code points published by the builtin providers.
const (
	IDSecp256r1          uint16 = 0x0017
	IDSecp384r1          uint16 = 0x0018
	IDSecp521r1          uint16 = 0x0019
	IDX25519             uint16 = 0x001d
	IDMLKEM512           uint16 = 0x0200
	IDMLKEM768           uint16 = 0x0201
	IDMLKEM1024          uint16 = 0x0202
	IDSecP256r1MLKEM768  uint16 = 0x11eb
	IDX25519MLKEM768     uint16 = 0x11ec
	IDSecP384r1MLKEM1024 uint16 = 0x11ed
	IDP256Kyber512       uint16 = 0x2f3a
	IDX25519Kyber768     uint16 = 0x6399
)

func initDefaultProvider(r *Registrar) error {
	r.AddGroup(Group{Name: "P-256", ID: IDSecp256r1, Kind: Classical, Aliases: []string{"secp256r1", "prime256v1"}})
	r.AddGroup(Group{Name: "P-384", ID: IDSecp384r1, Kind: Classical, Aliases: []string{"secp384r1"}})
	r.AddGroup(Group{Name: "P-521", ID: IDSecp521r1, Kind: Classical, Aliases: []string{"secp521r1"}})
	r.AddGroup(Group{Name: "X25519", ID: IDX25519, Kind: Classical, Aliases: []string{"x25519"}})
	return nil
}

// InitPQProvider publishes the hybrid and pure post-quantum groups.
func InitPQProvider(r *Registrar) error {
	r.AddGroup(Group{Name: "X25519MLKEM768", ID: IDX25519MLKEM768, Kind: Hybrid})
	r.AddGroup(Group{Name: "SecP256r1MLKEM768", ID: IDSecP256r1MLKEM768, Kind: Hybrid})
	r.AddGroup(Group{Name: "SecP384r1MLKEM1024", ID: IDSecP384r1MLKEM1024, Kind: Hybrid})
	r.AddGroup(Group{Name: "mlkem512", ID: IDMLKEM512, Kind: PostQuantum, Aliases: []string{"MLKEM512"}})
	r.AddGroup(Group{Name: "mlkem768", ID: IDMLKEM768, Kind: PostQuantum, Aliases: []string{"MLKEM768"}})
	r.AddGroup(Group{Name: "mlkem1024", ID: IDMLKEM1024, Kind: PostQuantum, Aliases: []string{"MLKEM1024"}})
	r.AddGroup(Group{Name: "p256_kyber512", ID: IDP256Kyber512, Kind: Hybrid})
	r.AddGroup(Group{Name: "x25519_kyber768", ID: IDX25519Kyber768, Kind: Hybrid, Aliases: []string{"X25519Kyber768Draft00"}})
	return nil
}

var (
	loadOnce sync.Once //nolint:gochecknoglobals
	loadErr  error     //nolint:gochecknoglobals
)

// EnsureLoaded populates the global context: it adds the post-quantum provider, loads it, and
// then loads the default provider. Only the first call does any work; every call returns the
// first call's result. It is safe to call from concurrent tests.
func EnsureLoaded() error {
	loadOnce.Do(func() {
		loadErr = loadBuiltins(nil)
	})
	return loadErr
}

func loadBuiltins(ctx *LibContext) error {
	if err := AddBuiltin(ctx, PQProviderName, InitPQProvider); err != nil {
		return err
	}
	if _, err := Load(ctx, PQProviderName); err != nil {
		return err
	}
	_, err := Load(ctx, DefaultProviderName)
	return err
}
