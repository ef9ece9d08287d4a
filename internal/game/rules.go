package game

import "fmt"

// Rules are the tunable constants of a world. Zero values are not
// substituted; start from DefaultRules.
type Rules struct {
	MapWidth  int `yaml:"map_width"`
	MapHeight int `yaml:"map_height"`

	// Tile layout of the house grid, used for coordinate indexes.
	StartTile GridCoord `yaml:"start_tile"`
	HouseSize GridCoord `yaml:"house_size"`

	InitialKeys       int    `yaml:"initial_keys"`
	InitialMoney      uint64 `yaml:"initial_money"`
	InitialHouseMoney uint64 `yaml:"initial_house_money"`
	InitialPeekChance int    `yaml:"initial_peek_chance"`

	BaseRent uint64 `yaml:"base_rent"`
	RentStep uint64 `yaml:"rent_step"`

	Seed int64 `yaml:"seed"`
}

func DefaultRules() Rules {
	return Rules{
		MapWidth:          4,
		MapHeight:         4,
		StartTile:         GridCoord{X: 21, Y: 9},
		HouseSize:         GridCoord{X: 4, Y: 4},
		InitialKeys:       20,
		InitialMoney:      100000,
		InitialHouseMoney: 5000,
		InitialPeekChance: 3,
		BaseRent:          1000,
		RentStep:          1000,
		Seed:              1337,
	}
}

func (r Rules) Validate() error {
	if r.MapWidth <= 0 || r.MapHeight <= 0 {
		return fmt.Errorf("map size must be positive, got %dx%d", r.MapWidth, r.MapHeight)
	}
	if r.HouseSize.X <= 0 || r.HouseSize.Y <= 0 {
		return fmt.Errorf("house size must be positive, got %v", r.HouseSize)
	}
	if r.StartTile.X < 0 || r.StartTile.Y < 0 {
		return fmt.Errorf("start tile must not be negative, got %v", r.StartTile)
	}
	if r.InitialKeys < 0 || r.InitialPeekChance < 0 {
		return fmt.Errorf("initial keys and peek chances must not be negative")
	}
	return nil
}

// Rent is the price of staying at home in the given round.
func (r Rules) Rent(round uint64) uint64 {
	if round == 0 {
		round = 1
	}
	return r.BaseRent + (round-1)*r.RentStep
}
