package core

// standardNames holds the names that occur in almost every document. It is
// filled once during package initialisation and only read afterwards, so
// concurrent lookups need no locking.
var standardNames map[string]Name

func init() {
	list := []string{
		"AA", "AcroForm", "Annots", "Annot", "AESV2", "AESV3", "Author",
		"BaseFont", "BitsPerComponent", "Border", "CF", "CFM", "Catalog",
		"Colors", "Columns", "Contents", "Count", "CreationDate", "Creator",
		"CropBox", "Crypt", "DCTDecode", "DP", "DecodeParms", "Dests",
		"EarlyChange", "EncryptMetadata", "Encrypt", "Extends", "F", "FT",
		"Fields", "Filter", "First", "FlateDecode", "Font", "Form", "ID",
		"Identity", "Image", "Index", "Info", "JBIG2Decode", "JPXDecode",
		"K", "Keywords", "Kids", "Last", "Length", "Length1", "Length2",
		"Length3", "Limits", "LZWDecode", "MediaBox", "Metadata",
		"ModDate", "N", "Names", "NeedAppearances", "Next", "O", "OE",
		"ObjStm", "Outlines", "P", "Page", "Pages", "Parent", "Perms",
		"Predictor", "Prev", "ProcSet", "Producer", "R", "Rect", "Resources",
		"Root", "Rotate", "RunLengthDecode", "Size", "Standard", "StdCF",
		"StmF", "StrF", "Subject", "Subtype", "T", "Title", "Trapped",
		"Type", "U", "UE", "V", "V2", "W", "Widget", "XObject", "XRef",
		"XRefStm", "ASCIIHexDecode", "ASCII85Decode", "CCITTFaxDecode",
		"ExtGState", "Pattern", "Shading", "ColorSpace", "Properties",
		"Dest", "A", "Fl", "AHx", "A85", "LZW", "RL", "CCF", "DCT",
	}
	standardNames = make(map[string]Name, len(list))
	for _, s := range list {
		standardNames[s] = Name(s)
	}
}

// Intern returns the Name for b, sharing storage with the standard name
// table when b is a well-known name.
func Intern(b []byte) Name {
	if n, ok := standardNames[string(b)]; ok {
		return n
	}
	return Name(b)
}
