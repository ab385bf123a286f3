package server

import (
	"net/http"
	"strconv"
	"time"

	"TradeArena/internal/core"
	widemath "TradeArena/internal/math"

	"github.com/labstack/echo/v4"
)

func competitionID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid competition id")
	}
	return id, nil
}

// --- Commands ---

type createCompetitionRequest struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	EntryFeeAsset     string    `json:"entry_fee_asset"`
	EntryFeeAmount    string    `json:"entry_fee_amount"`
	AdminFeeNumerator *int64    `json:"admin_fee_numerator,omitempty"`
	ProcessingFee     *string   `json:"processing_fee,omitempty"`
	PayoutPlaces      int       `json:"payout_places"`
}

func (s *Server) CreateCompetition(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	var req createCompetitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	amount, err := widemath.ParseValue(req.EntryFeeAmount)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry fee amount")
	}

	params := core.CreateCompetitionParams{
		Start:             req.Start,
		End:               req.End,
		EntryFeeAsset:     req.EntryFeeAsset,
		EntryFeeAmount:    amount,
		AdminFeeNumerator: req.AdminFeeNumerator,
		PayoutPlaces:      req.PayoutPlaces,
	}
	if req.ProcessingFee != nil {
		fee, err := widemath.ParseValue(*req.ProcessingFee)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid processing fee")
		}
		params.ProcessingFee = fee
	}

	id, err := s.core.CreateCompetition(c.Request().Context(), addr, params)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]uint64{"competition_id": id})
}

type payoutStructureRequest struct {
	Places     []int   `json:"places"`
	Numerators []int64 `json:"numerators"`
}

func (s *Server) SetPayoutStructure(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	var req payoutStructureRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.core.SetPayoutStructure(c.Request().Context(), addr, id, req.Places, req.Numerators); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type registerRequest struct {
	FeePayment string `json:"fee_payment"`
}

func (s *Server) Register(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	fee, err := widemath.ParseValue(req.FeePayment)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid fee payment")
	}
	if err := s.core.Register(c.Request().Context(), id, addr, fee); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) Deregister(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	if err := s.core.Deregister(c.Request().Context(), id, addr); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type swapRequest struct {
	AmountIn     string    `json:"amount_in"`
	MinAmountOut string    `json:"min_amount_out"`
	Path         []string  `json:"path"`
	Deadline     time.Time `json:"deadline"`
}

func (s *Server) Swap(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	var req swapRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	amountIn, err := widemath.ParseValue(req.AmountIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid amount in")
	}
	minOut, err := widemath.ParseValue(req.MinAmountOut)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid min amount out")
	}

	out, err := s.core.Swap(c.Request().Context(), id, addr, amountIn, minOut, req.Path, req.Deadline)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"amount_out": out.String()})
}

func (s *Server) TakePriceSnapshot(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	if err := s.core.TakePriceSnapshot(c.Request().Context(), id, addr); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type valuationRequest struct {
	Participant string `json:"participant"`
}

func (s *Server) ComputeFinalValue(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	var req valuationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	value, err := s.core.ComputeFinalValue(c.Request().Context(), id, addr, req.Participant)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"final_value": value.String()})
}

type placementRequest struct {
	Participants []string `json:"participants"`
}

func (s *Server) PlaceParticipants(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	var req placementRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.core.PlaceParticipants(c.Request().Context(), id, addr, req.Participants); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ResetPlacements(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	if err := s.core.ResetPlacements(c.Request().Context(), id, addr); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ChallengeJudge(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	if err := s.core.ChallengeJudge(c.Request().Context(), id, addr); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) UpdateJudge(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	if err := s.core.UpdateJudge(c.Request().Context(), id, addr); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) CollectAdminFee(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	fee, err := s.core.CollectAdminFee(c.Request().Context(), id, addr)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"amount": fee.String()})
}

type collectPrizeRequest struct {
	Asset string `json:"asset"`
}

func (s *Server) CollectPrize(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	var req collectPrizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	owed, err := s.core.CollectPrize(c.Request().Context(), id, addr, req.Asset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"amount": owed.String()})
}

type rescueRequest struct {
	Participant string `json:"participant"`
	Asset       string `json:"asset"`
}

func (s *Server) EmergencyRescue(c echo.Context) error {
	addr, err := caller(c)
	if err != nil {
		return err
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	var req rescueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	amount, err := s.core.EmergencyRescue(c.Request().Context(), id, addr, req.Participant, req.Asset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"amount": amount.String()})
}

// --- Queries ---

func (s *Server) GetCompetition(c echo.Context) error {
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	view, err := s.core.GetCompetition(id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) GetParticipant(c echo.Context) error {
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	view, err := s.core.GetParticipant(id, c.Param("address"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) GetPlacementGroups(c echo.Context) error {
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	groups, err := s.core.GetPlacementGroups(id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, groups)
}

func (s *Server) GetPrizePools(c echo.Context) error {
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	pools, err := s.core.GetPrizePools(id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pools)
}

func (s *Server) CompetitionEvents(c echo.Context) error {
	if s.query == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event history unavailable")
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	after := int64(-1)
	if raw := c.QueryParam("after"); raw != "" {
		after, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid after parameter")
		}
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	events, err := s.query.CompetitionEvents(c.Request().Context(), int64(id), after, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) ParticipantTransfers(c echo.Context) error {
	if s.query == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "transfer history unavailable")
	}
	id, err := competitionID(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	transfers, err := s.query.ParticipantTransfers(c.Request().Context(), int64(id), c.Param("address"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, transfers)
}
