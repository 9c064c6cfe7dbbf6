package capi

/*
#include <stddef.h>
#include <stdint.h>
*/
import "C"

import "unsafe"

//export flownode_init_from_env
func flownode_init_from_env() C.uintptr_t {
	return C.uintptr_t(initFromEnv())
}

//export flownode_context_free
func flownode_context_free(context C.uintptr_t) {
	contextFree(uintptr(context))
}

//export flownode_next_event
func flownode_next_event(context C.uintptr_t) C.uintptr_t {
	return C.uintptr_t(nextEvent(uintptr(context)))
}

//export flownode_event_free
func flownode_event_free(event C.uintptr_t) {
	eventFree(uintptr(event))
}

//export flownode_read_event_type
func flownode_read_event_type(event C.uintptr_t) C.int {
	return C.int(readEventType(uintptr(event)))
}

//export flownode_read_input_id
func flownode_read_input_id(event C.uintptr_t, outPtr **C.char, outLen *C.size_t) {
	p, n := readInputID(uintptr(event))
	*outPtr = (*C.char)(p)
	*outLen = C.size_t(n)
}

//export flownode_read_input_data_u8
func flownode_read_input_data_u8(event C.uintptr_t, outPtr **C.uint8_t, outLen *C.size_t) {
	vals := readInputData[uint8](uintptr(event))
	if len(vals) == 0 {
		*outPtr = nil
		*outLen = 0
		return
	}
	*outPtr = (*C.uint8_t)(unsafe.Pointer(&vals[0]))
	*outLen = C.size_t(len(vals))
}

//export flownode_read_input_data_i32
func flownode_read_input_data_i32(event C.uintptr_t, outPtr **C.int32_t, outLen *C.size_t) {
	vals := readInputData[int32](uintptr(event))
	if len(vals) == 0 {
		*outPtr = nil
		*outLen = 0
		return
	}
	*outPtr = (*C.int32_t)(unsafe.Pointer(&vals[0]))
	*outLen = C.size_t(len(vals))
}

//export flownode_read_input_data_f32
func flownode_read_input_data_f32(event C.uintptr_t, outPtr **C.float, outLen *C.size_t) {
	vals := readInputData[float32](uintptr(event))
	if len(vals) == 0 {
		*outPtr = nil
		*outLen = 0
		return
	}
	*outPtr = (*C.float)(unsafe.Pointer(&vals[0]))
	*outLen = C.size_t(len(vals))
}

//export flownode_read_input_data_u64
func flownode_read_input_data_u64(event C.uintptr_t, outPtr **C.uint64_t, outLen *C.size_t) {
	vals := readInputData[uint64](uintptr(event))
	if len(vals) == 0 {
		*outPtr = nil
		*outLen = 0
		return
	}
	*outPtr = (*C.uint64_t)(unsafe.Pointer(&vals[0]))
	*outLen = C.size_t(len(vals))
}

//export flownode_send_output_u8
func flownode_send_output_u8(context C.uintptr_t, idPtr *C.char, idLen C.size_t, dataPtr *C.uint8_t, dataLen C.size_t) C.int {
	id := goBytes(unsafe.Pointer(idPtr), int(idLen))
	data := goSlice[uint8](unsafe.Pointer(dataPtr), int(dataLen))
	return C.int(sendOutput(uintptr(context), id, data))
}

//export flownode_send_output_i32
func flownode_send_output_i32(context C.uintptr_t, idPtr *C.char, idLen C.size_t, dataPtr *C.int32_t, dataLen C.size_t) C.int {
	id := goBytes(unsafe.Pointer(idPtr), int(idLen))
	data := goSlice[int32](unsafe.Pointer(dataPtr), int(dataLen))
	return C.int(sendOutput(uintptr(context), id, data))
}

//export flownode_send_output_f32
func flownode_send_output_f32(context C.uintptr_t, idPtr *C.char, idLen C.size_t, dataPtr *C.float, dataLen C.size_t) C.int {
	id := goBytes(unsafe.Pointer(idPtr), int(idLen))
	data := goSlice[float32](unsafe.Pointer(dataPtr), int(dataLen))
	return C.int(sendOutput(uintptr(context), id, data))
}

//export flownode_send_output_u64
func flownode_send_output_u64(context C.uintptr_t, idPtr *C.char, idLen C.size_t, dataPtr *C.uint64_t, dataLen C.size_t) C.int {
	id := goBytes(unsafe.Pointer(idPtr), int(idLen))
	data := goSlice[uint64](unsafe.Pointer(dataPtr), int(dataLen))
	return C.int(sendOutput(uintptr(context), id, data))
}
