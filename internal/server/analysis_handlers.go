package server

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/botcharts/internal/model"
	"github.com/rickgao/botcharts/internal/transactions"
)

// maxChartImage bounds an uploaded chart screenshot.
const maxChartImage = 8 << 20

func (s *Server) requireTransactions(c *gin.Context) {
	if s.deps.Transactions == nil {
		errorJSON(c, http.StatusServiceUnavailable, "transaction journal disabled")
		return
	}
	c.Next()
}

// analysisResponse is a stored analysis in the shape the education panel
// reads.
type analysisResponse struct {
	Version int `json:"version"`
	model.AnalysisResult
	LearningRecommendation string `json:"learning_recommendation"`
}

func newAnalysisResponse(res model.AnalysisResult) analysisResponse {
	return analysisResponse{
		Version:                1,
		AnalysisResult:         res,
		LearningRecommendation: res.WinLossAssessment,
	}
}

// saveAnalysis records a reviewed trade for ?loginid=. The body is JSON, or
// a multipart form with the JSON in payload_json and an optional
// chart_screenshot file.
func (s *Server) saveAnalysis(c *gin.Context) {
	loginID := c.Query("loginid")
	if loginID == "" {
		errorJSON(c, http.StatusBadRequest, transactions.ErrMissingUser.Error())
		return
	}

	body, image, err := analysisBody(c)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	tx, res, err := transactions.DecodeAnalysis(body, loginID)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if image != "" {
		tx.ChartImage = image
	}

	saved, err := s.deps.Transactions.SaveAnalysis(c.Request.Context(), tx, res)
	if err != nil {
		s.logger.Error("save analysis failed", "loginid", loginID, "contract_id", tx.ContractID, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to save analysis")
		return
	}
	c.JSON(http.StatusCreated, newAnalysisResponse(saved))
}

func analysisBody(c *gin.Context) ([]byte, string, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		body, err := c.GetRawData()
		return body, "", err
	}

	payload := c.PostForm("payload_json")
	if payload == "" {
		return nil, "", errors.New("payload_json is required")
	}

	fh, err := c.FormFile("chart_screenshot")
	if errors.Is(err, http.ErrMissingFile) {
		return []byte(payload), "", nil
	}
	if err != nil {
		return nil, "", err
	}
	if fh.Size > maxChartImage {
		return nil, "", errors.New("chart_screenshot is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxChartImage))
	if err != nil {
		return nil, "", err
	}
	return []byte(payload), base64.StdEncoding.EncodeToString(raw), nil
}

// contractQuery reads ?loginid= and ?contract_id=.
func contractQuery(c *gin.Context) (string, string, bool) {
	loginID, contractID := c.Query("loginid"), c.Query("contract_id")
	if loginID == "" || contractID == "" {
		errorJSON(c, http.StatusBadRequest, "loginid and contract_id are required")
		return "", "", false
	}
	return loginID, contractID, true
}

func (s *Server) latestAnalysis(c *gin.Context) {
	loginID, contractID, ok := contractQuery(c)
	if !ok {
		return
	}

	res, err := s.deps.Transactions.LatestAnalysis(c.Request.Context(), loginID, contractID)
	switch {
	case errors.Is(err, transactions.ErrNotFound):
		errorJSON(c, http.StatusNotFound, "no analysis for this contract")
		return
	case err != nil:
		s.logger.Error("load analysis failed", "loginid", loginID, "contract_id", contractID, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to load analysis")
		return
	}
	c.JSON(http.StatusOK, newAnalysisResponse(res))
}

func (s *Server) chartImage(c *gin.Context) {
	loginID, contractID, ok := contractQuery(c)
	if !ok {
		return
	}

	img, err := s.deps.Transactions.ChartImage(c.Request.Context(), loginID, contractID)
	switch {
	case errors.Is(err, transactions.ErrNotFound), err == nil && img == "":
		errorJSON(c, http.StatusNotFound, "no chart image for this contract")
		return
	case err != nil:
		s.logger.Error("load chart image failed", "loginid", loginID, "contract_id", contractID, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to load chart image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract_id": contractID, "chart_image_b64": img})
}
