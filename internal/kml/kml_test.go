package kml

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Placemark>
      <name>HP-001</name>
      <Point><coordinates>106.8,-6.2,0</coordinates></Point>
    </Placemark>
  </Document>
</kml>`

func buildKMZ(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestSelectDocument_KMLPassesThrough(t *testing.T) {
	data := []byte(minimalKML)

	got, err := SelectDocument(data, "upload.kml")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Suffix match is case-insensitive.
	got, err = SelectDocument(data, "UPLOAD.KML")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestSelectDocument_KMZExtractsDocument(t *testing.T) {
	kmz := buildKMZ(t, map[string]string{"doc.kml": minimalKML})

	got, err := SelectDocument(kmz, "upload.kmz")
	require.NoError(t, err)
	assert.Equal(t, minimalKML, string(got))
}

func TestSelectDocument_KMZWithoutDocumentRejected(t *testing.T) {
	kmz := buildKMZ(t, map[string]string{"readme.txt": "nothing here"})

	_, err := SelectDocument(kmz, "upload.kmz")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoDocument))
}

func TestSelectDocument_UnsupportedSuffixRejected(t *testing.T) {
	for _, name := range []string{"upload.zip", "upload.csv", "upload", "upload.kml.bak"} {
		_, err := SelectDocument([]byte("x"), name)
		require.Error(t, err, name)
		assert.True(t, eris.Is(err, ErrUnsupportedSuffix), name)
	}
}

func TestSelectDocument_CorruptKMZRejected(t *testing.T) {
	_, err := SelectDocument([]byte("not a zip archive"), "upload.kmz")
	require.Error(t, err)
}

func TestParse_CollectsNestedPlacemarks(t *testing.T) {
	kml := `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Folder>
      <name>outer</name>
      <Placemark><name>A</name><Point><coordinates>1,2</coordinates></Point></Placemark>
      <Folder>
        <Placemark><name>B</name><Point><coordinates>3,4</coordinates></Point></Placemark>
      </Folder>
    </Folder>
    <Placemark><name>C</name><Point><coordinates>5,6</coordinates></Point></Placemark>
  </Document>
</kml>`

	doc, err := Parse([]byte(kml))
	require.NoError(t, err)
	require.Len(t, doc.Placemarks, 3)
	assert.Equal(t, "A", doc.Placemarks[0].Name)
	assert.Equal(t, "B", doc.Placemarks[1].Name)
	assert.Equal(t, "C", doc.Placemarks[2].Name)
}

func TestParse_MalformedDocumentRejected(t *testing.T) {
	_, err := Parse([]byte(`<kml><Placemark><name>broken`))
	require.Error(t, err)
}

func TestParse_DeclaredCharsetDecoded(t *testing.T) {
	// ISO-8859-1 document with a 0xE9 ("é") byte in the name.
	header := `<?xml version="1.0" encoding="ISO-8859-1"?><kml><Placemark><name>caf`
	footer := `</name><Point><coordinates>1,2</coordinates></Point></Placemark></kml>`
	data := append([]byte(header), 0xE9)
	data = append(data, []byte(footer)...)

	doc, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, doc.Placemarks, 1)
	assert.Equal(t, "café", doc.Placemarks[0].Name)
}

func TestParse_MultiGeometryPlacemark(t *testing.T) {
	kml := `<kml><Placemark>
  <name>multi</name>
  <MultiGeometry>
    <Point><coordinates>10,20</coordinates></Point>
  </MultiGeometry>
</Placemark></kml>`

	doc, err := Parse([]byte(kml))
	require.NoError(t, err)
	require.Len(t, doc.Placemarks, 1)
	require.NotNil(t, doc.Placemarks[0].pointGeom())
	assert.Equal(t, "10,20", doc.Placemarks[0].pointGeom().Coordinates)
}
