package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxel-engine/internal/export"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

const octetStream = "application/octet-stream"

// Заголовки со скалярами, которые нужны рендереру для разбора буфера
const (
	HeaderLayout    = "X-Voxel-Layout"
	HeaderDomain    = "X-Voxel-Domain"
	HeaderChunkSize = "X-Voxel-Chunk-Size"
	HeaderScale     = "X-Voxel-Scale"
	HeaderOrigin    = "X-Voxel-Origin"
)

// VoxelResponse - значение одного вокселя
type VoxelResponse struct {
	Pos   vec.Vec3 `json:"pos"`
	Value uint32   `json:"value"`
	RGBA  [4]int   `json:"rgba"`
	Solid bool     `json:"solid"`
}

func newVoxelResponse(p vec.Vec3, b block.Block) VoxelResponse {
	r, g, bl, a := b.RGBA()
	return VoxelResponse{Pos: p, Value: uint32(b), RGBA: [4]int{r, g, bl, a}, Solid: b.IsSolid()}
}

// SetVoxelRequest - запись в октодерево. Задаётся ровно одно из Block, RGBA, Value.
type SetVoxelRequest struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Z     int     `json:"z"`
	Block string  `json:"block,omitempty"` // имя из палитры
	RGBA  *[4]int `json:"rgba,omitempty"`
	Value *uint32 `json:"value,omitempty"`
}

func (r SetVoxelRequest) resolve() (block.Block, error) {
	set := 0
	var (
		b   block.Block
		err error
	)
	if r.Block != "" {
		set++
		var ok bool
		if b, ok = block.Get(r.Block); !ok {
			err = fmt.Errorf("unknown block %q: %w", r.Block, block.ErrRange)
		}
	}
	if r.RGBA != nil {
		set++
		b, err = block.Pack(r.RGBA[0], r.RGBA[1], r.RGBA[2], r.RGBA[3])
	}
	if r.Value != nil {
		set++
		b = block.Block(*r.Value)
	}
	if set != 1 {
		return 0, fmt.Errorf("exactly one of block, rgba, value expected: %w", block.ErrRange)
	}
	return b, err
}

// queryPos читает координаты x, y, z из строки запроса
func queryPos(c *gin.Context) (vec.Vec3, error) {
	var coords [3]int
	for i, name := range []string{"x", "y", "z"} {
		raw, ok := c.GetQuery(name)
		if !ok {
			return vec.Vec3{}, fmt.Errorf("missing query parameter %s", name)
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return vec.Vec3{}, fmt.Errorf("query parameter %s: %v", name, err)
		}
		coords[i] = v
	}
	return vec.FromArray(coords), nil
}

func (rs *RestServer) handleWorldInfo(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Параметры сетки",
		Data:    rs.service.WorldInfo(),
	})
}

// handleGenerate заполняет сетку. Ошибки отдельных вокселей не прерывают генерацию.
func (rs *RestServer) handleGenerate(c *gin.Context) {
	err := rs.service.Generate(c.Request.Context())
	info := rs.service.WorldInfo()
	if !info.Populated {
		respondError(c, err)
		return
	}

	msg := "Мир сгенерирован"
	if err != nil {
		msg = fmt.Sprintf("Мир сгенерирован с ошибками: %v", err)
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: msg, Data: info})
}

func (rs *RestServer) handleWorldBlocks(c *gin.Context) {
	buf, err := rs.service.ExportWorld()
	if err != nil {
		respondError(c, err)
		return
	}
	writeGridHeaders(c, buf)
	c.Data(http.StatusOK, octetStream, export.EncodeWords(export.BlockWords(buf.Blocks)))
}

func (rs *RestServer) handleWorldChunks(c *gin.Context) {
	buf, err := rs.service.ExportWorld()
	if err != nil {
		respondError(c, err)
		return
	}
	writeGridHeaders(c, buf)
	c.Data(http.StatusOK, octetStream, export.EncodeWords(buf.ChunkOffsets))
}

func writeGridHeaders(c *gin.Context, buf *export.Buffers) {
	c.Header(HeaderLayout, buf.Layout.String())
	c.Header(HeaderDomain, strconv.Itoa(buf.Domain))
	c.Header(HeaderChunkSize, strconv.Itoa(buf.ChunkSize))
}

func (rs *RestServer) handleWorldVoxel(c *gin.Context) {
	p, err := queryPos(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	b, err := rs.service.WorldVoxel(p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Воксель сетки", Data: newVoxelResponse(p, b)})
}

func (rs *RestServer) handleOctreeInfo(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Параметры октодерева",
		Data:    rs.service.OctreeInfo(),
	})
}

func (rs *RestServer) handleOctreeNodes(c *gin.Context) {
	buf, err := rs.service.ExportOctree()
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header(HeaderLayout, buf.Layout.String())
	c.Header(HeaderScale, strconv.Itoa(buf.Scale))
	c.Header(HeaderOrigin, fmt.Sprintf("%d,%d,%d", buf.Origin.X, buf.Origin.Y, buf.Origin.Z))
	c.Data(http.StatusOK, octetStream, export.EncodeWords(buf.Nodes))
}

func (rs *RestServer) handleOctreeVoxel(c *gin.Context) {
	p, err := queryPos(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	b, err := rs.service.OctreeVoxel(p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Воксель октодерева", Data: newVoxelResponse(p, b)})
}

func (rs *RestServer) handleSetOctreeVoxel(c *gin.Context) {
	var req SetVoxelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	b, err := req.resolve()
	if err != nil {
		respondError(c, err)
		return
	}

	p := vec.Vec3{X: req.X, Y: req.Y, Z: req.Z}
	if err := rs.service.SetOctreeVoxel(p, b); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Воксель записан",
		Data: gin.H{
			"voxel":  newVoxelResponse(p, b),
			"octree": rs.service.OctreeInfo(),
		},
	})
}

func (rs *RestServer) handleGetFrame(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Параметры кадра", Data: rs.service.FrameParams()})
}

// handleSetFrame обновляет параметры кадра; поля, не указанные в теле, не меняются
func (rs *RestServer) handleSetFrame(c *gin.Context) {
	params := rs.service.FrameParams()
	if err := c.ShouldBindJSON(&params); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	if err := rs.service.SetFrameParams(params); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Параметры кадра обновлены", Data: params})
}
