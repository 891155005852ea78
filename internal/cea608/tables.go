package cea608

// Font styles, as packed into pac2_attribs (608.c).
type Font uint8

const (
	FontRegular Font = iota
	FontItalics
	FontUnderlined
	FontUnderlinedItalics
)

// Color, as selected by PAC/mid-row attribute codes.
type Color uint8

const (
	ColWhite Color = iota
	ColGreen
	ColBlue
	ColCyan
	ColRed
	ColYellow
	ColMagenta
	ColUserDefined
	ColBlack
	ColTransparent
)

const screenWidth = 32

// rowdata maps ((c1<<1)&14)|((c2>>5)&1) to a PAC row number (1-15),
// ported verbatim from 608.c.
var rowdata = [16]int{11, -1, 1, 2, 3, 4, 12, 13, 14, 15, 5, 6, 7, 8, 9, 10}

type pacAttr struct {
	color  Color
	font   Font
	indent int
}

// pac2Attribs is pac2_attribs from 608.c: indexed by (c2 & 0x1F) after
// subtracting the 0x40/0x60 base, giving Color/Font/Indent.
var pac2Attribs = [32]pacAttr{
	{ColWhite, FontRegular, 0},
	{ColWhite, FontUnderlined, 0},
	{ColGreen, FontRegular, 0},
	{ColGreen, FontUnderlined, 0},
	{ColBlue, FontRegular, 0},
	{ColBlue, FontUnderlined, 0},
	{ColCyan, FontRegular, 0},
	{ColCyan, FontUnderlined, 0},
	{ColRed, FontRegular, 0},
	{ColRed, FontUnderlined, 0},
	{ColYellow, FontRegular, 0},
	{ColYellow, FontUnderlined, 0},
	{ColMagenta, FontRegular, 0},
	{ColMagenta, FontUnderlined, 0},
	{ColWhite, FontItalics, 0},
	{ColWhite, FontUnderlinedItalics, 0},
	{ColWhite, FontRegular, 0},
	{ColWhite, FontUnderlined, 0},
	{ColWhite, FontRegular, 4},
	{ColWhite, FontUnderlined, 4},
	{ColWhite, FontRegular, 8},
	{ColWhite, FontUnderlined, 8},
	{ColWhite, FontRegular, 12},
	{ColWhite, FontUnderlined, 12},
	{ColWhite, FontRegular, 16},
	{ColWhite, FontUnderlined, 16},
	{ColWhite, FontRegular, 20},
	{ColWhite, FontUnderlined, 20},
	{ColWhite, FontRegular, 24},
	{ColWhite, FontUnderlined, 24},
	{ColWhite, FontRegular, 28},
	{ColWhite, FontUnderlined, 28},
}

// specialChars maps the "double" special character code (0x11/0x19, 0x30-0x3F)
// to its Unicode rune, per CEA-608 Annex F special character set.
var specialChars = map[byte]rune{
	0x30: '®', // registered mark
	0x31: '°', // degree
	0x32: '½', // 1/2
	0x33: '¿',
	0x34: '™', // trademark
	0x35: '¢', // cents
	0x36: '£', // pound sterling
	0x37: '♪', // music note
	0x38: 'à',
	0x39: ' ', // transparent space, rendered as regular space
	0x3A: 'è',
	0x3B: 'â',
	0x3C: 'ê',
	0x3D: 'î',
	0x3E: 'ô',
	0x3F: 'û',
}

// extendedWestEuropean maps extended character codes (0x12/0x13 high byte,
// 0x20-0x3F low byte) to runes. Not exhaustive; the common accented Latin
// set used by the original's extended character table.
var extendedWestEuropean = map[uint16]rune{
	0x1220: 'Á', 0x1221: 'É', 0x1222: 'Ó', 0x1223: 'Ú',
	0x1224: 'Ü', 0x1225: 'ü', 0x1226: '‘', 0x1227: '¡',
	0x1228: '*', 0x1229: '’', 0x122A: '─', 0x122B: '©',
	0x122C: '℠', 0x122D: '•', 0x122E: '“', 0x122F: '”',
	0x1320: 'À', 0x1321: 'Â', 0x1322: 'Ç', 0x1323: 'È',
	0x1324: 'Ê', 0x1325: 'Ë', 0x1326: 'ë', 0x1327: 'Î',
	0x1328: 'Ï', 0x1329: 'ï', 0x132A: 'Ô', 0x132B: 'Ù',
	0x132C: 'ù', 0x132D: 'Û', 0x132E: '«', 0x132F: '»',
}
