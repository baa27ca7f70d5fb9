package emulator

import "image"

// Stream Deck Plus geometry. Keys are drawn at 2x.
const (
	keySize        = 72
	keyDisplaySize = 144
	keysPerRow     = 4
	keyRows        = 2
	keyCount       = keysPerRow * keyRows
	dialCount      = 4
	dialSize       = 120

	stripWidth  = 800
	stripHeight = 100

	marginX       = 20
	marginY       = 20
	headerHeight  = 30
	stripMarginY  = 72
	dialMarginY   = 50
	bottomMarginY = 50
)

const (
	keySpacing    = (stripWidth - keysPerRow*keyDisplaySize) / (keysPerRow + 1)
	keyAreaHeight = keyRows*keyDisplaySize + (keyRows-1)*keySpacing
	dialSpacing   = (stripWidth - dialCount*dialSize) / (dialCount + 1)

	keysTop  = headerHeight + marginY
	stripTop = keysTop + keyAreaHeight + stripMarginY
	dialsTop = stripTop + stripHeight + dialMarginY

	windowWidth  = 2*marginX + stripWidth
	windowHeight = dialsTop + dialSize + bottomMarginY
)

var stripBounds = image.Rect(marginX, stripTop, marginX+stripWidth, stripTop+stripHeight)

// keyBounds returns the on-screen area of key index i.
func keyBounds(i int) image.Rectangle {
	row, col := i/keysPerRow, i%keysPerRow
	x := marginX + keySpacing + col*(keyDisplaySize+keySpacing)
	y := keysTop + row*(keyDisplaySize+keySpacing)
	return image.Rect(x, y, x+keyDisplaySize, y+keyDisplaySize)
}

func dialCenter(i int) image.Point {
	x := marginX + dialSpacing + i*(dialSize+dialSpacing)
	return image.Pt(x+dialSize/2, dialsTop+dialSize/2)
}

// keyAt returns the 1-based key under p, or 0.
func keyAt(p image.Point) int {
	for i := range keyCount {
		if p.In(keyBounds(i)) {
			return i + 1
		}
	}
	return 0
}

// dialAt returns the 1-based dial under p, or 0.
func dialAt(p image.Point) int {
	r := dialSize / 2
	for i := range dialCount {
		d := p.Sub(dialCenter(i))
		if d.X*d.X+d.Y*d.Y <= r*r {
			return i + 1
		}
	}
	return 0
}
