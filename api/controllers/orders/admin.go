package orders

import (
	"net/http"

	"github.com/zazmarga/online-cinema/api/responses"
	"github.com/zazmarga/online-cinema/api/validators"
	internalorders "github.com/zazmarga/online-cinema/internal/orders"
	"github.com/zazmarga/online-cinema/pkg/enums"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
)

// AdminList returns every order matching the user, date and status filters.
func AdminList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		params, err := buildAdminParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListAllOrders(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func buildAdminParams(r *http.Request) (internalorders.AdminListParams, error) {
	var params internalorders.AdminListParams

	page, err := validators.ParsePagination(r)
	if err != nil {
		return params, err
	}
	params.Params = page

	if params.UserIDs, err = validators.ParseQueryUUIDs(r, "user_ids"); err != nil {
		return params, err
	}
	if params.DateFrom, err = validators.ParseQueryDate(r, "date_from"); err != nil {
		return params, err
	}
	if params.DateTo, err = validators.ParseQueryDate(r, "date_to"); err != nil {
		return params, err
	}

	for _, raw := range validators.ParseQueryList(r, "status") {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status", "value": raw})
		}
		params.Statuses = append(params.Statuses, status)
	}
	return params, nil
}
