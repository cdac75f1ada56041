package broker

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	frame := encodeFrame("63", "2", "DU123", "NetLiquidation", "20000.00", "USD")

	fields, err := readFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Equal(t, []string{"63", "2", "DU123", "NetLiquidation", "20000.00", "USD"}, fields)
}

func TestReadFrameHandlesEmptyFrame(t *testing.T) {
	frame := encodeFrame()
	fields, err := readFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Empty(t, fields)
}
