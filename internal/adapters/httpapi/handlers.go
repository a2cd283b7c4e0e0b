package httpapi

import (
	"context"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/zerr"
)

type handlers struct {
	service Service
}

func uintParam(c echo.Context, name string) (uint64, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, zerr.With(zerr.Wrap(domain.ErrInvalidIdentifier, "path parameter must be an unsigned integer"),
			"param", name)
	}
	return v, nil
}

func execParam(c echo.Context) (domain.ExecutionID, error) {
	v, err := uintParam(c, "exec")
	return domain.ExecutionID(v), err
}

// bind decodes the JSON body into v. Malformed bodies are validation errors.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return zerr.Wrap(domain.ErrValidation, "malformed request body: "+err.Error())
	}
	return nil
}

func (h *handlers) registerTask(c echo.Context) error {
	var task domain.Task
	if err := bind(c, &task); err != nil {
		return err
	}
	if err := h.service.RegisterTask(c.Request().Context(), caller(c), &task); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *handlers) getTask(c echo.Context) error {
	id, err := uintParam(c, "task")
	if err != nil {
		return err
	}
	task, err := h.service.Task(c.Request().Context(), domain.TaskID(id))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) eligible(c echo.Context) error {
	id, err := uintParam(c, "task")
	if err != nil {
		return err
	}
	nodes, err := h.service.EligibleNodes(c.Request().Context(), domain.TaskID(id))
	if err != nil {
		return err
	}
	if nodes == nil {
		nodes = []domain.Identity{}
	}
	return c.JSON(http.StatusOK, nodes)
}

func (h *handlers) registerModel(c echo.Context) error {
	var model domain.Model
	if err := bind(c, &model); err != nil {
		return err
	}
	if err := h.service.RegisterModel(c.Request().Context(), caller(c), &model); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, model)
}

func (h *handlers) getModel(c echo.Context) error {
	id, err := uintParam(c, "model")
	if err != nil {
		return err
	}
	model, err := h.service.Model(c.Request().Context(), domain.ModelID(id))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, model)
}

type registerNodeRequest struct {
	Specializations []domain.TaskID `json:"specializations"`
	Stake           uint64          `json:"stake"`
}

func (h *handlers) registerNode(c echo.Context) error {
	var req registerNodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	node, err := h.service.RegisterNode(c.Request().Context(), caller(c), req.Specializations, req.Stake)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, node)
}

func (h *handlers) getNode(c echo.Context) error {
	node, err := h.service.Node(c.Request().Context(), domain.Identity(c.Param("owner")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, node)
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type stakeResponse struct {
	Owner domain.Identity `json:"owner"`
	Stake uint64          `json:"stake"`
}

type balanceResponse struct {
	Owner   domain.Identity `json:"owner"`
	Balance uint64          `json:"balance"`
}

func (h *handlers) increaseStake(c echo.Context) error {
	return h.adjustStake(c, h.service.IncreaseStake)
}

func (h *handlers) decreaseStake(c echo.Context) error {
	return h.adjustStake(c, h.service.DecreaseStake)
}

func (h *handlers) adjustStake(
	c echo.Context,
	op func(ctx context.Context, caller, owner domain.Identity, amount uint64) (uint64, error),
) error {
	var req amountRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	owner := domain.Identity(c.Param("owner"))
	stake, err := op(c.Request().Context(), caller(c), owner, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stakeResponse{Owner: owner, Stake: stake})
}

func (h *handlers) balance(c echo.Context) error {
	owner := domain.Identity(c.Param("owner"))
	balance, err := h.service.Balance(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balanceResponse{Owner: owner, Balance: balance})
}

func (h *handlers) credit(c echo.Context) error {
	var req amountRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	owner := domain.Identity(c.Param("owner"))
	balance, err := h.service.Credit(c.Request().Context(), caller(c), owner, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balanceResponse{Owner: owner, Balance: balance})
}

type requestExecutionRequest struct {
	ModelID domain.ModelID `json:"model_id"`
	Input   string         `json:"input"`
	MaxFee  uint64         `json:"max_fee"`
}

func (h *handlers) requestExecution(c echo.Context) error {
	var req requestExecutionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	exec, err := h.service.RequestExecution(c.Request().Context(), caller(c), req.ModelID, req.Input, req.MaxFee)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, exec)
}

func (h *handlers) getExecution(c echo.Context) error {
	id, err := execParam(c)
	if err != nil {
		return err
	}
	exec, err := h.service.Execution(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, exec)
}

type assignRequest struct {
	TaskID domain.TaskID   `json:"task_id"`
	Node   domain.Identity `json:"node"`
}

func (h *handlers) assignTask(c echo.Context) error {
	id, err := execParam(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return respond(c)(h.service.AssignTask(c.Request().Context(), caller(c), id, req.TaskID, req.Node))
}

type releaseRequest struct {
	TaskID domain.TaskID `json:"task_id"`
}

func (h *handlers) releaseTask(c echo.Context) error {
	id, err := execParam(c)
	if err != nil {
		return err
	}
	var req releaseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return respond(c)(h.service.ReleaseTask(c.Request().Context(), caller(c), id, req.TaskID))
}

func (h *handlers) cancelExecution(c echo.Context) error {
	id, err := execParam(c)
	if err != nil {
		return err
	}
	return respond(c)(h.service.CancelExecution(c.Request().Context(), caller(c), id))
}

type verifierRequest struct {
	StatusIndex uint64          `json:"status_index"`
	Node        domain.Identity `json:"node"`
}

func (h *handlers) assignVerifier(c echo.Context) error {
	id, err := execParam(c)
	if err != nil {
		return err
	}
	var req verifierRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return respond(c)(h.service.AssignVerifier(c.Request().Context(), caller(c), id, req.StatusIndex, req.Node))
}

func taskParams(c echo.Context) (domain.ExecutionID, uint64, error) {
	id, err := execParam(c)
	if err != nil {
		return 0, 0, err
	}
	index, err := uintParam(c, "index")
	return id, index, err
}

func (h *handlers) startTask(c echo.Context) error {
	id, index, err := taskParams(c)
	if err != nil {
		return err
	}
	return respond(c)(h.service.StartTask(c.Request().Context(), caller(c), id, index))
}

type completeRequest struct {
	Outputs []string `json:"outputs"`
	// Entropy is hex encoded; at least eight bytes are required.
	Entropy string `json:"entropy"`
}

func (h *handlers) completeTask(c echo.Context) error {
	id, index, err := taskParams(c)
	if err != nil {
		return err
	}
	var req completeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	entropy, err := hex.DecodeString(req.Entropy)
	if err != nil {
		return zerr.Wrap(domain.ErrInsufficientEntropy, "entropy must be hex encoded")
	}
	return respond(c)(h.service.CompleteTask(c.Request().Context(), caller(c), id, index, req.Outputs, entropy))
}

type failRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) failTask(c echo.Context) error {
	id, index, err := taskParams(c)
	if err != nil {
		return err
	}
	var req failRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return respond(c)(h.service.FailTask(c.Request().Context(), caller(c), id, index, req.Reason))
}

type verifyRequest struct {
	Outputs []string `json:"outputs"`
}

func (h *handlers) reportVerification(c echo.Context) error {
	id, index, err := taskParams(c)
	if err != nil {
		return err
	}
	var req verifyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return respond(c)(h.service.ReportVerification(c.Request().Context(), caller(c), id, index, req.Outputs))
}

// respond writes the execution returned by a transition.
func respond(c echo.Context) func(*domain.Execution, error) error {
	return func(exec *domain.Execution, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, exec)
	}
}
