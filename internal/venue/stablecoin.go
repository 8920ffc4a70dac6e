package venue

import "github.com/alanyoungcy/alphasignal/internal/domain"

// stablecoins are never traded: a directional call on a dollar peg is noise.
var stablecoins = map[string]struct{}{
	"USDC": {}, "USDT": {}, "DAI": {}, "BUSD": {}, "TUSD": {}, "USDE": {},
	"FDUSD": {}, "PYUSD": {}, "USDS": {}, "FRAX": {}, "LUSD": {}, "GUSD": {},
	"USDP": {}, "USDD": {}, "USD": {},
}

// IsStablecoin reports whether token is on the fixed stablecoin list.
func IsStablecoin(token string) bool {
	_, ok := stablecoins[domain.NormalizeToken(token)]
	return ok
}
