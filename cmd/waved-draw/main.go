// waved-draw renders a grayscale test card and pushes it to a running waved
// daemon over the control socket.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"net/url"
	"os"
	"time"

	"github.com/fogleman/gg"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
)

type envelope struct {
	ID     *json.RawMessage `json:"id,omitempty"`
	Method string           `json:"method,omitempty"`
	Params interface{}      `json:"params,omitempty"`
	Result json.RawMessage  `json:"result,omitempty"`
	Error  json.RawMessage  `json:"error,omitempty"`
}

type invokeParams struct {
	Command string      `json:"command"`
	Args    interface{} `json:"args,omitempty"`
}

type updateArgs struct {
	Mode      string `json:"mode"`
	Immediate bool   `json:"immediate,omitempty"`
	Region    region `json:"region"`
	Pixels    []byte `json:"pixels"`
}

type region struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8989", "waved control socket address")
	mode := flag.String("mode", "DU", "waveform mode")
	immediate := flag.Bool("immediate", false, "use immediate update mode")
	top := flag.Int("top", 0, "target region top")
	left := flag.Int("left", 0, "target region left")
	width := flag.Int("width", 400, "target region width")
	height := flag.Int("height", 400, "target region height")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	card := testCard(*width, *height)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Str("addr", *addr).Msg("failed to connect")
	}
	defer func() {
		_ = conn.Close()
	}()

	id := json.RawMessage(`1`)
	req := envelope{
		ID:     &id,
		Method: "invoke",
		Params: invokeParams{
			Command: "display.update",
			Args: updateArgs{
				Mode:      *mode,
				Immediate: *immediate,
				Region:    region{Top: *top, Left: *left, Width: *width, Height: *height},
				Pixels:    card,
			},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		log.Fatal().Err(err).Msg("failed to send update")
	}

	var resp envelope
	if err := conn.ReadJSON(&resp); err != nil {
		log.Fatal().Err(err).Msg("failed to read response")
	}
	if resp.Error != nil {
		log.Fatal().RawJSON("error", resp.Error).Msg("update rejected")
	}
	log.Info().RawJSON("result", resp.Result).Msg("update pushed")
}

// testCard draws a labeled grid of gray patches and returns it as one 5-bit
// intensity byte per pixel, row-major.
func testCard(width, height int) []byte {
	// Render at double size and downsample for crisper edges.
	dc := gg.NewContext(width*2, height*2)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	cells := 8
	cw := float64(width*2) / float64(cells)
	ch := float64(height*2) / float64(cells)
	for row := 0; row < cells; row++ {
		for col := 0; col < cells; col++ {
			v := float64(row*cells+col) / float64(cells*cells-1)
			dc.SetRGB(v, v, v)
			dc.DrawRectangle(float64(col)*cw, float64(row)*ch, cw, ch)
			dc.Fill()
		}
	}
	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("%dx%d", width, height), 8, 16)

	gray := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(gray, gray.Bounds(), dc.Image(), dc.Image().Bounds(), xdraw.Src, nil)

	pixels := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixels[y*width+x] = gray.GrayAt(x, y).Y >> 3
		}
	}
	return pixels
}
