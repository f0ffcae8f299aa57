package http

import (
	"encoding/json"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type PeriodHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)

	Process(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	MarkPaid(w http.ResponseWriter, r *http.Request)
	Close(w http.ResponseWriter, r *http.Request)

	ListPayrolls(w http.ResponseWriter, r *http.Request)
	GetPayroll(w http.ResponseWriter, r *http.Request)
	CalculateEmployee(w http.ResponseWriter, r *http.Request)
}

type periodHandlerImpl struct {
	periodService     payroll.PeriodService
	calculatorService payroll.CalculatorService
}

func NewPeriodHandler(periodService payroll.PeriodService, calculatorService payroll.CalculatorService) PeriodHandler {
	return &periodHandlerImpl{
		periodService:     periodService,
		calculatorService: calculatorService,
	}
}

// actorID identifies who triggered a lifecycle transition. Until an auth
// layer exists it is carried in a plain header.
func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-ID")
}

func (h *periodHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req payroll.CreatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.periodService.Create(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll period created", result)
}

func (h *periodHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Period ID is required", nil)
		return
	}

	result, err := h.periodService.Get(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *periodHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.periodService.List(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result, &response.Meta{TotalItems: int64(len(result))})
}

func (h *periodHandlerImpl) Process(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Period ID is required", nil)
		return
	}

	result, err := h.periodService.Process(r.Context(), id, actorID(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run completed", result)
}

func (h *periodHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Period ID is required", nil)
		return
	}

	if err := h.periodService.Approve(r.Context(), id, actorID(r)); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll period approved", nil)
}

func (h *periodHandlerImpl) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Period ID is required", nil)
		return
	}

	if err := h.periodService.MarkPaid(r.Context(), id); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll period marked as paid", nil)
}

func (h *periodHandlerImpl) Close(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Period ID is required", nil)
		return
	}

	if err := h.periodService.Close(r.Context(), id, actorID(r)); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll period closed", nil)
}

func (h *periodHandlerImpl) ListPayrolls(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Period ID is required", nil)
		return
	}

	result, err := h.periodService.ListPayrolls(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result, &response.Meta{TotalItems: int64(len(result))})
}

func (h *periodHandlerImpl) GetPayroll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payroll ID is required", nil)
		return
	}

	result, err := h.periodService.GetPayroll(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *periodHandlerImpl) CalculateEmployee(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "id")
	employeeID := chi.URLParam(r, "employeeID")
	if periodID == "" || employeeID == "" {
		response.BadRequest(w, "Period ID and employee ID are required", nil)
		return
	}

	p, details, err := h.calculatorService.CalculateEmployee(r.Context(), employeeID, periodID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	detailResponses := make([]payroll.PayrollDetailResponse, 0, len(details))
	for _, d := range details {
		detailResponses = append(detailResponses, payroll.ToDetailResponse(d))
	}

	response.SuccessWithMessage(w, "Payroll calculated", payroll.PayrollWithDetails{
		Payroll: payroll.ToPayrollResponse(p),
		Details: detailResponses,
	})
}
