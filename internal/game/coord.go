package game

import "fmt"

// GridCoord addresses a house on the house grid (or a tile, depending on
// context).
type GridCoord struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (c GridCoord) String() string { return fmt.Sprintf("(%d, %d)", c.X, c.Y) }

// CoordIndex packs a non-negative tile coordinate as x<<32 | y.
func CoordIndex(tile GridCoord) uint64 {
	if tile.X < 0 || tile.Y < 0 {
		invariantf("negative tile coordinate %v", tile)
	}
	return uint64(tile.X)<<32 + uint64(tile.Y)
}

func IndexToTile(index uint64) GridCoord {
	return GridCoord{X: int(index >> 32), Y: int(index & 0xFFFFFFFF)}
}

func (r Rules) GridToTile(grid GridCoord) GridCoord {
	return GridCoord{
		X: grid.X*r.HouseSize.X + r.StartTile.X,
		Y: grid.Y*r.HouseSize.Y + r.StartTile.Y,
	}
}

func (r Rules) TileToGrid(tile GridCoord) GridCoord {
	return GridCoord{
		X: (tile.X - r.StartTile.X) / r.HouseSize.X,
		Y: (tile.Y - r.StartTile.Y) / r.HouseSize.Y,
	}
}

func (r Rules) GridToIndex(grid GridCoord) uint64 { return CoordIndex(r.GridToTile(grid)) }

func (r Rules) IndexToGrid(index uint64) GridCoord { return r.TileToGrid(IndexToTile(index)) }

func (r Rules) inMap(grid GridCoord) bool {
	return grid.X >= 0 && grid.Y >= 0 && grid.X < r.MapWidth && grid.Y < r.MapHeight
}
